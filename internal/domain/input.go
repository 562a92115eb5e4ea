package domain

// InputFile 描述一个解析完成的输入序列文件。
//
// 不变量：
// - AbsPath 必须是 clean + absolute
// - Base 在一次运行的全部输入中唯一（输出文件名由 Base 拼出）
type InputFile struct {
	AbsPath string
	Base    string // 文件名去掉最后一个扩展名

	// 以下字段来自 FASTA 嗅探；phmmer/needle 不依赖它们，只用于报告。
	FirstID   string
	Sequences int
}

// InputResult 是 report 中对单个输入文件的描述（仅记录有问题的输入）。
type InputResult struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}
