package entity

type Department struct {
	ID    int64 `orm:"id,column=department_id"`
	DName string
	// Members 反向关系, 不落库, 查询时按 Member.Department 反查
	Members []int64 `orm:"ref=Member,mappedBy=Department"`
}

func NewDepartment(name string) *Department {
	return &Department{DName: name}
}
