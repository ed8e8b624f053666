package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"oscarflow/pkg/contract"
	"oscarflow/pkg/oscar"
	ejson "oscarflow/plugins/encoder/resultjson"
	eyoda "oscarflow/plugins/encoder/yoda"
	rfs "oscarflow/plugins/reader/filesystem"
	wfs "oscarflow/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
// 错误归类为配置错误。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: options: %v", contract.ErrConfig, err)
	}
	return nil
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewEncoder 工厂签名：接收原样 JSON Options。
type NewEncoder func(raw json.RawMessage) (contract.Encoder, error)

// NewDecoder 工厂签名（下游读取持久化结果）。
type NewDecoder func(raw json.RawMessage) (contract.Decoder, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件/目录/STDIN
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Format 输入格式注册表：名称 → 适配器。
var Format = map[string]func() (oscar.Adapter, error){
	oscar.NameSMASH:   func() (oscar.Adapter, error) { return oscar.NewAdapter(oscar.SMASH) },
	oscar.NameBHACQGP: func() (oscar.Adapter, error) { return oscar.NewAdapter(oscar.BHACQGP) },
}

// Encoder 工厂注册表。
var Encoder = map[string]NewEncoder{
	// json: 完整记录（默认），可被 Decoder["json"] 读回
	"json": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts ejson.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ejson.New(&opts), nil
	},
	// yoda: 每个 (强子, 轴, 观测量) 一个 YODA 直方图
	"yoda": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts eyoda.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return eyoda.New(&opts), nil
	},
}

// Decoder 工厂注册表。
var Decoder = map[string]NewDecoder{
	"json": func(raw json.RawMessage) (contract.Decoder, error) {
		var opts ejson.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ejson.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 原子写入，已存在的输出改名备份
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// Names 返回注册表的有序键，用于帮助信息与错误提示。
func Names[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
