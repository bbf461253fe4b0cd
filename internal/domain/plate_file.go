package domain

// PlateFile 描述板目录下的一个候选文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - RelPath 相对板目录；板目录不递归，因此 RelPath 就是文件名
type PlateFile struct {
	AbsPath string
	RelPath string
	Base    string // filename without ext
	Ext     string // ".mat"
	Size    int64
	ModUnix int64
}
