package orm

import (
	"querydemo/orm/internal/errs"
	"querydemo/orm/model"
)

// Subquery 嵌入一个构造好的查询
// 当作标量用时必须只有一列, 执行时最多一行; 当作 IN 的参数时必须只有一列
type Subquery struct {
	q *query
}

// Sub orm.Sub(orm.Select[int64](m.Age.Max()).From(m))
func Sub[T any](s *Selector[T]) Subquery {
	q := s.q
	return Subquery{q: &q}
}

func (s Subquery) scalar() error {
	if len(s.q.columns) != 1 {
		return errs.NewInvalidQueryShape("子查询必须只有一列")
	}
	if _, ok := s.q.columns[0].(Expression); !ok {
		return errs.NewInvalidQueryShape("子查询必须投影标量")
	}
	return nil
}

func (s Subquery) Kind() model.Kind {
	if s.Err() != nil || s.scalar() != nil {
		return model.KindInvalid
	}
	return s.q.columns[0].(Expression).Kind()
}

func (s Subquery) Err() error {
	if s.q == nil {
		return errs.NewUnsupportedExpression(s)
	}
	return s.q.err
}

func (s Subquery) expr()       {}
func (s Subquery) selectable() {}
