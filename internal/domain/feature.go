package domain

// CellFeature 是一次扫描中单个文件对应的记录：来源文件、解析出的坐标，以及（若布局命中）孔位元数据。
//
// 创建后不再修改；Entry 为 nil 表示布局中没有该坐标（不是错误）。
type CellFeature struct {
	File    PlateFile
	Key     LayoutKey
	Feature string // 文件名中 well 之后的特征名后缀，可为空

	Entry *LayoutEntry
}

// Annotated 表示该文件的坐标是否在布局中命中。
func (f CellFeature) Annotated() bool {
	return f.Entry != nil
}
