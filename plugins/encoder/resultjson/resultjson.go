package resultjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"oscarflow/pkg/contract"
	"oscarflow/pkg/histo"
)

// Options: JSON 编码选项。
type Options struct {
	// Indent: 缩进输出（便于人工查看；默认紧凑）。
	Indent bool `json:"indent" yaml:"indent"`
}

// Codec 将 Result 编码为单个 JSON 对象，字段顺序与记录顺序一致；也可反向解码。
type Codec struct {
	indent bool
}

var (
	_ contract.Encoder = (*Codec)(nil)
	_ contract.Decoder = (*Codec)(nil)
)

// New 创建 JSON 编解码器。opts 可为 nil。
func New(opts *Options) *Codec {
	c := &Codec{}
	if opts != nil {
		c.indent = opts.Indent
	}
	return c
}

func (c *Codec) Encode(ctx context.Context, res contract.Result) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := Check(res); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if c.indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(&res); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &buf, nil
}

// Decode 严格解码：拒绝未知字段，并校验各数组维度一致。
func (c *Codec) Decode(ctx context.Context, r io.Reader) (contract.Result, error) {
	if err := ctx.Err(); err != nil {
		return contract.Result{}, err
	}
	var res contract.Result
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&res); err != nil {
		return contract.Result{}, fmt.Errorf("%w: decode result: %v", contract.ErrParse, err)
	}
	if err := Check(res); err != nil {
		return contract.Result{}, err
	}
	return res, nil
}

// Check 校验直方图维度：[len(Hadrons)][len(centres)]。
func Check(res contract.Result) error {
	check := func(name string, t [][][3]float64, bins int) error {
		h, err := histo.FromTable(t)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if h.Hadrons() != len(res.Hadrons) {
			return fmt.Errorf("%w: %s has %d hadron rows, want %d", contract.ErrShapeMismatch, name, h.Hadrons(), len(res.Hadrons))
		}
		if h.Hadrons() > 0 && h.Bins() != bins {
			return fmt.Errorf("%w: %s has %d bins, want %d", contract.ErrShapeMismatch, name, h.Bins(), bins)
		}
		return nil
	}
	if err := check("y_spectra", res.YSpectra, len(res.YCenters)); err != nil {
		return err
	}
	return check("pt_spectra", res.PTSpectra, len(res.PTCenters))
}
