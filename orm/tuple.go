package orm

import (
	"fmt"
	"strings"
)

// Tuple 多列投影的一行, 有序且有名字
type Tuple struct {
	names  []string
	values []any
}

func NewTuple(names []string, values []any) Tuple {
	return Tuple{names: names, values: values}
}

// Get 按投影项取值, tuple.Get(m.C("Username"))
func (t Tuple) Get(s Selectable) any {
	v, _ := t.Value(exprName(s))
	return v
}

func (t Tuple) Value(name string) (any, bool) {
	for i, n := range t.names {
		if n == name {
			return t.values[i], true
		}
	}
	return nil, false
}

func (t Tuple) At(i int) any {
	return t.values[i]
}

func (t Tuple) Len() int {
	return len(t.values)
}

func (t Tuple) Names() []string {
	return t.names
}

func (t Tuple) Values() []any {
	return t.values
}

// String [yoobin, CALL]
func (t Tuple) String() string {
	strs := make([]string, 0, len(t.values))
	for _, v := range t.values {
		if v == nil {
			strs = append(strs, "null")
			continue
		}
		strs = append(strs, fmt.Sprint(v))
	}
	return "[" + strings.Join(strs, ", ") + "]"
}
