package contract

import "oscarflow/pkg/hadron"

// ResultInfo 为持久化记录第 0 项：其余字段的可读说明。
const ResultInfo = "The record contains, in order:\n" +
	"0 this information string\n" +
	"1 the list of the considered hadrons (code, index, name)\n" +
	"2 the total number of sampling events\n" +
	"3 the minimum transverse momentum pT allowed in dN/dy plots\n" +
	"4 the maximum transverse momentum pT allowed in dN/dy plots\n" +
	"5 the maximum absolute value of the rapidity in dN/dpT plots\n" +
	"6 the y rapidity bin array (central points)\n" +
	"7 the pT transverse momentum bin array (central points)\n" +
	"8 the y bin width dy\n" +
	"9 the pT bin width dpT\n" +
	"10 the total dN vs dy yields (not averaged by events, not divided by dy), v1 and v2 total sum\n" +
	"11 the total dN vs dpT yields (not averaged by events, not divided by dpT), v1 and v2 total sum\n" +
	"The 3D arrays have dimensions: number of hadrons, length of rapidity or pT array, 3 (dN, v1, v2)\n"

// Result: 一次运行的最终载荷。字段顺序即持久化顺序。
// 直方图为原始累加和：不除以事件数，不除以 bin 宽。
type Result struct {
	Info        string           `json:"info"`
	Hadrons     []hadron.Species `json:"hadrons"`
	Events      int64            `json:"events"`
	PTMinCut    float64          `json:"pt_min_cut"`
	PTMaxCut    float64          `json:"pt_max_cut"`
	RapidityCut float64          `json:"rapidity_cut"`
	YCenters    []float64        `json:"y_centers"`
	PTCenters   []float64        `json:"pt_centers"`
	DY          float64          `json:"dy"`
	DPT         float64          `json:"dpt"`
	YSpectra    [][][3]float64   `json:"y_spectra"`
	PTSpectra   [][][3]float64   `json:"pt_spectra"`
}
