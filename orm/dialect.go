package orm

import (
	"strconv"

	"querydemo/orm/model"
)

var (
	DialectMySQL  Dialect = mysqlDialect{}
	DialectSQLite Dialect = sqliteDialect{}
)

type Dialect interface {
	Name() string
	// Quote 给表名列名加引号
	Quote(name string) string
	// ColumnType 建表用的列类型
	ColumnType(attr *model.Attribute) string

	//quoter 为了解决引号问题
	//MySQL `
	quoter() byte
	buildConcat(b *builder, args []Expression) error
	buildCast(b *builder, arg Expression) error
	// buildIntDiv 整数相除, 结果向零取整
	buildIntDiv(b *builder, a Arith) error
	buildOrderBy(b *builder, o OrderBy) error
	buildLimit(b *builder, offset int, limit int)
}

// standardSQL 标准写法, SQLite 基本就是这样
type standardSQL struct {
}

func (s standardSQL) quoter() byte {
	return '"'
}

func (s standardSQL) buildConcat(b *builder, args []Expression) error {
	b.sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			b.sb.WriteString(" || ")
		}
		if err := b.buildExpression(a); err != nil {
			return err
		}
	}
	b.sb.WriteByte(')')
	return nil
}

func (s standardSQL) buildCast(b *builder, arg Expression) error {
	b.sb.WriteString("CAST(")
	if err := b.buildExpression(arg); err != nil {
		return err
	}
	b.sb.WriteString(" AS TEXT)")
	return nil
}

func (s standardSQL) buildIntDiv(b *builder, a Arith) error {
	return b.buildArith(a, "/")
}

func (s standardSQL) buildOrderBy(b *builder, o OrderBy) error {
	if err := b.buildExpression(o.expr); err != nil {
		return err
	}
	if o.desc {
		b.sb.WriteString(" DESC")
	} else {
		b.sb.WriteString(" ASC")
	}
	switch o.nulls {
	case nullsFirst:
		b.sb.WriteString(" NULLS FIRST")
	case nullsLast:
		b.sb.WriteString(" NULLS LAST")
	}
	return nil
}

func (s standardSQL) buildLimit(b *builder, offset int, limit int) {
	b.sb.WriteString(" LIMIT ?")
	b.addArgs(limit)
	if offset > 0 {
		b.sb.WriteString(" OFFSET ?")
		b.addArgs(offset)
	}
}

type mysqlDialect struct {
	standardSQL
}

func (m mysqlDialect) Name() string {
	return "mysql"
}

func (m mysqlDialect) quoter() byte {
	return '`'
}

func (m mysqlDialect) Quote(name string) string {
	return "`" + name + "`"
}

func (m mysqlDialect) ColumnType(attr *model.Attribute) string {
	switch {
	case attr.Identity:
		return "BIGINT PRIMARY KEY AUTO_INCREMENT"
	case attr.Kind == model.KindFloat:
		return "DOUBLE"
	case attr.Kind == model.KindString:
		return "VARCHAR(255)"
	case attr.Kind == model.KindBool:
		return "BOOLEAN"
	}
	return "BIGINT"
}

func (m mysqlDialect) buildConcat(b *builder, args []Expression) error {
	b.sb.WriteString("CONCAT(")
	for i, a := range args {
		if i > 0 {
			b.sb.WriteByte(',')
		}
		if err := b.buildExpression(a); err != nil {
			return err
		}
	}
	b.sb.WriteByte(')')
	return nil
}

func (m mysqlDialect) buildCast(b *builder, arg Expression) error {
	b.sb.WriteString("CAST(")
	if err := b.buildExpression(arg); err != nil {
		return err
	}
	b.sb.WriteString(" AS CHAR)")
	return nil
}

// buildIntDiv MySQL 的 / 结果是小数
func (m mysqlDialect) buildIntDiv(b *builder, a Arith) error {
	return b.buildArith(a, "DIV")
}

// buildOrderBy MySQL 没有 NULLS FIRST, 用 IS NULL 先排一次
func (m mysqlDialect) buildOrderBy(b *builder, o OrderBy) error {
	if o.nulls != nullsDefault {
		if err := b.buildExpression(o.expr); err != nil {
			return err
		}
		if o.nulls == nullsFirst {
			b.sb.WriteString(" IS NULL DESC,")
		} else {
			b.sb.WriteString(" IS NULL ASC,")
		}
	}
	o.nulls = nullsDefault
	return m.standardSQL.buildOrderBy(b, o)
}

// buildLimit MySQL 有 OFFSET 就必须有 LIMIT
func (m mysqlDialect) buildLimit(b *builder, offset int, limit int) {
	if limit < 0 {
		b.sb.WriteString(" LIMIT " + strconv.FormatUint(1<<64-1, 10))
	} else {
		b.sb.WriteString(" LIMIT ?")
		b.addArgs(limit)
	}
	if offset > 0 {
		b.sb.WriteString(" OFFSET ?")
		b.addArgs(offset)
	}
}

type sqliteDialect struct {
	standardSQL
}

func (s sqliteDialect) Name() string {
	return "sqlite3"
}

func (s sqliteDialect) quoter() byte {
	return '`'
}

func (s sqliteDialect) Quote(name string) string {
	return "`" + name + "`"
}

func (s sqliteDialect) ColumnType(attr *model.Attribute) string {
	switch {
	case attr.Identity:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	case attr.Kind == model.KindFloat:
		return "REAL"
	case attr.Kind == model.KindString:
		return "TEXT"
	case attr.Kind == model.KindBool:
		return "BOOLEAN"
	}
	return "INTEGER"
}

// buildLimit SQLite 用 -1 表示不限制
func (s sqliteDialect) buildLimit(b *builder, offset int, limit int) {
	if limit < 0 {
		limit = -1
	}
	s.standardSQL.buildLimit(b, offset, limit)
}
