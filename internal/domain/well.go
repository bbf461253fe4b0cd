package domain

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Well 是规范化后的孔位（形如 a1、p24）：行字母小写，列号不补零。
//
// 约束：只接受 384 孔板的坐标范围（行 a-p，列 1-24）。
type Well string

const (
	WellMaxRow    = 'p'
	WellMaxColumn = 24
)

var wellRE = regexp.MustCompile(`^([a-z])0*([0-9]{1,3})$`)

// ParseWell 校验并规范化孔位字符串，"A01"、"a1"、" a001 " 都得到 "a1"。
func ParseWell(s string) (Well, bool) {
	m := wellRE.FindStringSubmatch(NormalizeToken(s))
	if m == nil {
		return "", false
	}
	row := m[1][0]
	if row > WellMaxRow {
		return "", false
	}
	col, err := strconv.Atoi(m[2])
	if err != nil || col < 1 || col > WellMaxColumn {
		return "", false
	}
	return Well(string(row) + strconv.Itoa(col)), true
}

// Row 返回行字母（'a'..'p'）；非法孔位返回 0。
func (w Well) Row() byte {
	if len(w) == 0 {
		return 0
	}
	return w[0]
}

// Column 返回列号（1..24）；非法孔位返回 0。
func (w Well) Column() int {
	if len(w) < 2 {
		return 0
	}
	n, err := strconv.Atoi(string(w[1:]))
	if err != nil {
		return 0
	}
	return n
}

// NormalizeToken 把布局/文件名中的标识统一成可比较的形态：NFC + 去空白 + 小写。
// 布局加载与文件名解析必须使用同一规则，否则 Find 会出现假阴性。
func NormalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}
