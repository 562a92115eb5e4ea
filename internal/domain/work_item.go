package domain

// WorkItem 是一对输入文件（无序对的规范形态）。
//
// 规范化：I < J，I/J 是两者在输入顺序中的下标，因此同一对不会以反序出现。
type WorkItem struct {
	I, J int
	A, B InputFile
}

// WorkUnit 是一次外部命令调用：参数向量 + 期望的输出路径。
//
// Args[0] 是可执行文件；不经过 shell，所以不需要任何转义。
type WorkUnit struct {
	Index      int
	Label      string // 日志/报告里的简短名字，例如 "001R_FRG3Gx002L_FRG3G"
	Args       []string
	OutputPath string
}
