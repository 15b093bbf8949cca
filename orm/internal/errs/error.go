package errs

import (
	"errors"
	"fmt"
)

var (
	ErrPointOnly       = errors.New("orm: 只支持指向结构体的一级指针")
	ErrInsertZeroRow   = errors.New("orm: 插入 0 行")
	ErrNonUniqueResult = errors.New("orm: 结果不唯一")

	ErrUnknownAttribute          = errors.New("orm: 未知属性")
	ErrDuplicateAttribute        = errors.New("orm: 重复属性")
	ErrUnknownEntity             = errors.New("orm: 未知实体")
	ErrDuplicateEntity           = errors.New("orm: 重复实体")
	ErrInvalidEntity             = errors.New("orm: 非法实体定义")
	ErrTypeMismatch              = errors.New("orm: 类型不匹配")
	ErrInvalidQueryShape         = errors.New("orm: 非法查询结构")
	ErrUnsupportedExpression     = errors.New("orm: 不支持的表达式类型")
	ErrUnsupportedTableReference = errors.New("orm: 不支持的 TableReference 类型")
	ErrInvalidTagContent         = errors.New("orm: 非法标签")
	ErrNilDataSource             = errors.New("orm: 数据源为空")
	ErrTxNotSupported            = errors.New("orm: 数据源不支持事务")
	ErrReadOnlySource            = errors.New("orm: 数据源不支持写入")
)

func NewUnknownAttribute(entity string, name string) error {
	return fmt.Errorf("%w %s.%s", ErrUnknownAttribute, entity, name)
}

func NewDuplicateAttribute(entity string, name string) error {
	return fmt.Errorf("%w %s.%s", ErrDuplicateAttribute, entity, name)
}

func NewUnknownEntity(name any) error {
	return fmt.Errorf("%w %v", ErrUnknownEntity, name)
}

func NewDuplicateEntity(name string) error {
	return fmt.Errorf("%w %s", ErrDuplicateEntity, name)
}

func NewInvalidEntity(name string, reason string) error {
	return fmt.Errorf("%w %s: %s", ErrInvalidEntity, name, reason)
}

// NewTypeMismatch 表达式构造时类型检查失败
func NewTypeMismatch(op string, left any, right any) error {
	return fmt.Errorf("%w: %s 不能作用于 %v 和 %v", ErrTypeMismatch, op, left, right)
}

func NewUnsupportedValue(val any) error {
	return fmt.Errorf("%w: 不支持的常量类型 %T", ErrTypeMismatch, val)
}

func NewInvalidQueryShape(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidQueryShape, reason)
}

func NewNonUniqueResult(cnt int) error {
	return fmt.Errorf("%w: 期望最多 1 行, 实际 %d 行", ErrNonUniqueResult, cnt)
}

func NewUnsupportedExpression(expr any) error {
	return fmt.Errorf("%w %v", ErrUnsupportedExpression, expr)
}

func NewUnsupportedTableReference(table any) error {
	return fmt.Errorf("%w %v", ErrUnsupportedTableReference, table)
}

func NewErrInvalidTagContent(pair string) error {
	return fmt.Errorf("%w %s", ErrInvalidTagContent, pair)
}

func NewErrFailedToRollbackTx(bizErr error, rbErr error, panicked bool) error {
	return fmt.Errorf("orm: 事务闭包回滚失败，业务错误：%w. 回滚错误%s. 是否panic: %t", bizErr, rbErr, panicked)
}
