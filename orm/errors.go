package orm

import "querydemo/orm/internal/errs"

// 对外暴露的错误, 用 errors.Is 判断
var (
	ErrUnknownAttribute      = errs.ErrUnknownAttribute
	ErrDuplicateAttribute    = errs.ErrDuplicateAttribute
	ErrTypeMismatch          = errs.ErrTypeMismatch
	ErrNonUniqueResult       = errs.ErrNonUniqueResult
	ErrInvalidQueryShape     = errs.ErrInvalidQueryShape
	ErrUnknownEntity         = errs.ErrUnknownEntity
	ErrDuplicateEntity       = errs.ErrDuplicateEntity
	ErrInvalidEntity         = errs.ErrInvalidEntity
	ErrPointOnly             = errs.ErrPointOnly
	ErrInsertZeroRow         = errs.ErrInsertZeroRow
	ErrUnsupportedExpression = errs.ErrUnsupportedExpression
	ErrUnsupportedTable      = errs.ErrUnsupportedTableReference
	ErrInvalidTagContent     = errs.ErrInvalidTagContent
	ErrTxNotSupported        = errs.ErrTxNotSupported
	ErrReadOnlySource        = errs.ErrReadOnlySource
)
