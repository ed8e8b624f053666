package contract

// FileID: 逻辑输入标识（通常为路径，已规范化，跨平台一致）。
type FileID string

// ArtifactID: 输出工件标识（语义别名，与 FileID 同表示）。
type ArtifactID = FileID
