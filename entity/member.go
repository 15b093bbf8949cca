package entity

import "fmt"

type Member struct {
	ID       int64 `orm:"id,column=member_id"`
	Username string
	Age      int
	Team     string
	// Department 维护端, 存部门主键
	Department *int64 `orm:"ref=Department,column=department_id"`
}

// NewMember dept 的主键在部门写入之后才有, 所以这里保存的是指向它的指针
func NewMember(username string, age int, team string, dept *Department) *Member {
	m := &Member{
		Username: username,
		Age:      age,
		Team:     team,
	}
	if dept != nil {
		m.Department = &dept.ID
	}
	return m
}

func (m *Member) String() string {
	return fmt.Sprintf("Member(id=%d, username=%s, age=%d)", m.ID, m.Username, m.Age)
}
