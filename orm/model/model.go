package model

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"querydemo/orm/internal/errs"
)

const (
	tagKeyColumn   = "column"
	tagKeyID       = "id"
	tagKeyRef      = "ref"
	tagKeyMappedBy = "mappedBy"
)

type Registry interface {
	// Define 显式定义实体, 不需要结构体
	Define(name string, attrs []Attribute, opts ...EntityOpt) (*Entity, error)
	// Register 通过结构体指针解析实体, 只支持一级指针
	Register(val any, opts ...EntityOpt) (*Entity, error)
	// Get 按实体名查找
	Get(name string) (*Entity, error)
	// Of 按结构体类型查找, 没有注册过会先注册
	Of(val any) (*Entity, error)
}

// Direction 关系的方向
type Direction uint8

const (
	// Owning 维护端, 持有外键
	Owning Direction = iota
	// Inverse 被维护端, 不持久化, 由 MappedBy 指向的外键反查
	Inverse
)

type Attribute struct {
	Name    string
	ColName string
	Kind    Kind
	// Identity 主键
	Identity bool

	// Target 关系指向的实体名
	Target    string
	Direction Direction
	// MappedBy Inverse 关系在目标实体上对应的外键属性
	MappedBy string

	// 下面的字段只有通过结构体注册时才有
	GoName string
	Type   reflect.Type
	//字段相对于结构体本身的偏移量
	Offset uintptr
}

func (a *Attribute) IsRelation() bool {
	return a.Target != ""
}

// Persisted 反向关系是推导出来的, 不落库
func (a *Attribute) Persisted() bool {
	return !(a.IsRelation() && a.Direction == Inverse)
}

type Entity struct {
	Name      string
	TableName string
	// 按定义顺序
	Attributes []*Attribute
	//属性名到属性的映射
	AttrMap map[string]*Attribute
	//列名到属性的映射
	ColumnMap map[string]*Attribute
	ID        *Attribute
	// Type 结构体指针类型, Define 出来的实体为 nil
	Type reflect.Type
}

func (e *Entity) Attribute(name string) (*Attribute, error) {
	attr, ok := e.AttrMap[name]
	if !ok {
		return nil, errs.NewUnknownAttribute(e.Name, name)
	}
	return attr, nil
}

// Columns 需要持久化的属性
func (e *Entity) Columns() []*Attribute {
	res := make([]*Attribute, 0, len(e.Attributes))
	for _, attr := range e.Attributes {
		if attr.Persisted() {
			res = append(res, attr)
		}
	}
	return res
}

// EntityOpt option变种
type EntityOpt func(e *Entity) error

type registry struct {
	// 保证检查和写入是原子的, 读不加锁
	lock  sync.Mutex
	names sync.Map
	types sync.Map
}

func NewRegistry() Registry {
	return &registry{}
}

func (r *registry) Get(name string) (*Entity, error) {
	e, ok := r.names.Load(name)
	if !ok {
		return nil, errs.NewUnknownEntity(name)
	}
	return e.(*Entity), nil
}

func (r *registry) Of(val any) (*Entity, error) {
	typ := reflect.TypeOf(val)
	e, ok := r.types.Load(typ)
	if ok {
		return e.(*Entity), nil
	}
	return r.Register(val)
}

func (r *registry) Define(name string, attrs []Attribute, opts ...EntityOpt) (*Entity, error) {
	e, err := newEntity(name, attrs)
	if err != nil {
		return nil, err
	}
	return r.store(e, opts)
}

// Register 限制只能用一级指针
func (r *registry) Register(val any, opts ...EntityOpt) (*Entity, error) {
	typ := reflect.TypeOf(val)
	if typ == nil || typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
		return nil, errs.ErrPointOnly
	}
	elemTyp := typ.Elem()
	numField := elemTyp.NumField()
	attrs := make([]Attribute, 0, numField)
	hasID := false
	for i := 0; i < numField; i++ {
		fd := elemTyp.Field(i)
		if !fd.IsExported() {
			continue
		}
		pair, err := r.parseTag(fd.Tag)
		if err != nil {
			return nil, err
		}
		if pair["-"] != "" {
			continue
		}
		attr := Attribute{
			Name:     fd.Name,
			ColName:  pair[tagKeyColumn],
			Kind:     KindOf(fd.Type),
			Target:   pair[tagKeyRef],
			MappedBy: pair[tagKeyMappedBy],
			GoName:   fd.Name,
			Type:     fd.Type,
			Offset:   fd.Offset,
		}
		_, attr.Identity = pair[tagKeyID]
		if attr.MappedBy != "" {
			attr.Direction = Inverse
		}
		hasID = hasID || attr.Identity
		attrs = append(attrs, attr)
	}
	// 没有打标签就用 Id / ID 字段
	if !hasID {
		for i := range attrs {
			if attrs[i].Name == "Id" || attrs[i].Name == "ID" {
				attrs[i].Identity = true
				break
			}
		}
	}

	e, err := newEntity(elemTyp.Name(), attrs)
	if err != nil {
		return nil, err
	}
	e.Type = typ
	if tbl, ok := val.(TableName); ok {
		if name := tbl.TableName(); name != "" {
			e.TableName = name
		}
	}
	return r.store(e, opts)
}

func (r *registry) store(e *Entity, opts []EntityOpt) (*Entity, error) {
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if e.Type != nil {
		if old, ok := r.types.Load(e.Type); ok {
			return old.(*Entity), nil
		}
	}
	if _, ok := r.names.Load(e.Name); ok {
		return nil, errs.NewDuplicateEntity(e.Name)
	}
	r.names.Store(e.Name, e)
	if e.Type != nil {
		r.types.Store(e.Type, e)
	}
	return e, nil
}

func newEntity(name string, attrs []Attribute) (*Entity, error) {
	if name == "" {
		return nil, errs.NewInvalidEntity(name, "实体名为空")
	}
	e := &Entity{
		Name:       name,
		TableName:  underscoreName(name),
		Attributes: make([]*Attribute, 0, len(attrs)),
		AttrMap:    make(map[string]*Attribute, len(attrs)),
		ColumnMap:  make(map[string]*Attribute, len(attrs)),
	}
	for i := range attrs {
		attr := attrs[i]
		if attr.Name == "" {
			return nil, errs.NewInvalidEntity(name, "属性名为空")
		}
		if _, ok := e.AttrMap[attr.Name]; ok {
			return nil, errs.NewDuplicateAttribute(name, attr.Name)
		}
		if attr.ColName == "" {
			attr.ColName = underscoreName(attr.Name)
		}
		if attr.IsRelation() {
			if attr.MappedBy != "" {
				attr.Direction = Inverse
			}
			if attr.Direction == Inverse {
				attr.Kind = KindList
			} else {
				attr.Kind = KindRelation
			}
		} else if attr.MappedBy != "" {
			return nil, errs.NewInvalidEntity(name, "mappedBy 缺少 ref: "+attr.Name)
		}
		if attr.Kind == KindInvalid || attr.Kind == KindNull {
			return nil, errs.NewInvalidEntity(name, "属性类型不支持: "+attr.Name)
		}
		p := &attr
		if p.Identity {
			if e.ID != nil {
				return nil, errs.NewInvalidEntity(name, "多个主键")
			}
			if p.IsRelation() {
				return nil, errs.NewInvalidEntity(name, "关系不能作为主键")
			}
			e.ID = p
		}
		e.Attributes = append(e.Attributes, p)
		e.AttrMap[p.Name] = p
		if p.Persisted() {
			e.ColumnMap[p.ColName] = p
		}
	}
	if e.ID == nil {
		return nil, errs.NewInvalidEntity(name, "缺少主键")
	}
	return e, nil
}

func WithColumnName(attr string, columnName string) EntityOpt {
	return func(e *Entity) error {
		fd, ok := e.AttrMap[attr]
		if !ok {
			return errs.NewUnknownAttribute(e.Name, attr)
		}
		delete(e.ColumnMap, fd.ColName)
		fd.ColName = columnName
		if fd.Persisted() {
			e.ColumnMap[columnName] = fd
		}
		return nil
	}
}

func WithTableName(tableName string) EntityOpt {
	return func(e *Entity) error {
		e.TableName = tableName
		return nil
	}
}

// type Member struct {
//	ID uint64 `orm:"id,column=member_id"`
// }
func (r *registry) parseTag(tag reflect.StructTag) (map[string]string, error) {
	ormTag, ok := tag.Lookup("orm")
	if !ok {
		return map[string]string{}, nil
	}
	pairs := strings.Split(ormTag, ",")
	res := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		segs := strings.Split(pair, "=")
		switch len(segs) {
		case 1:
			// 标志位, 例如 id
			res[segs[0]] = "true"
		case 2:
			if segs[1] == "" {
				return nil, errs.NewErrInvalidTagContent(pair)
			}
			res[segs[0]] = segs[1]
		default:
			return nil, errs.NewErrInvalidTagContent(pair)
		}
	}
	return res, nil
}

// underscoreName 驼峰转下划线, 连续大写视为一个单词: MemberID -> member_id
func underscoreName(name string) string {
	runes := []rune(name)
	buf := make([]rune, 0, len(runes)+4)
	for i, v := range runes {
		if unicode.IsUpper(v) {
			if i != 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				buf = append(buf, '_')
			}
			buf = append(buf, unicode.ToLower(v))
		} else {
			buf = append(buf, v)
		}
	}
	return string(buf)
}

type TableName interface {
	TableName() string
}
