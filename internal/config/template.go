package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// TemplateName 为 init-config 写出的文件名。
const TemplateName = "oscarflow.yaml"

// TemplateYAML 为默认配置模板：所有键都给出，值与 Defaults 一致。
// inputs 为 STDIN（"-"），可直接用于管道。
const TemplateYAML = `# oscarflow 配置。优先级：命令行 > 环境变量(OSCARFLOW_*) > 本文件 > 内置默认值
format: SMASH            # SMASH | BHAC-QGP
inputs: ["-"]            # 文件或目录；"-" 表示 STDIN，不能与其他输入混用
output: ./output.json    # 已存在时改名为 <output>_backup_copy_<时间戳>
concurrency: 1           # 同时处理的文件数
logging:
  level: info            # debug | info | warn | error
  dir: ""                # 非空时写 JSON 轮转日志
binning:
  rapidity_resolution: 0.2
  max_rapidity: 5.1
  pt_resolution: 0.1
  max_pt: 4.0
cuts:
  pt_min: 0              # dN/dy 接受 pt_min <= pT < pt_max
  pt_max: 1000
  rapidity: 1000         # dN/dpT 接受 |y| < rapidity
components:
  reader: fs
  encoder: json          # json | yoda
  writer: fs
options:
  reader:
    buf_size: 262144
    exclude_dir_names: [".git"]
    extensions: []
  encoder:
    indent: false
  writer:
    atomic: true
    backup: true
metrics_file: ""
`

// DefaultTemplateConfig 解析 TemplateYAML。
func DefaultTemplateConfig() (Config, error) {
	return Load(TemplateName, []byte(TemplateYAML))
}

// WriteTemplate 在 dir 下写出默认模板并返回路径；目标已存在时返回错误，绝不覆盖。
func WriteTemplate(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, TemplateName)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return p, fmt.Errorf("%s already exists, not overwriting", p)
	}
	if err != nil {
		return p, err
	}
	if _, err := f.WriteString(TemplateYAML); err != nil {
		_ = f.Close()
		return p, err
	}
	return p, f.Close()
}
