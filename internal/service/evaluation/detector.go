package evaluation

import (
	"strconv"
	"strings"
	"time"

	"github.com/ashwinyue/next-eval/internal/model"
)

// datetimeLayouts 按顺序尝试的日期格式；日、月、时允许不补零
var datetimeLayouts = []string{
	"2006-1-2",          // YYYY-MM-DD
	"2/1/2006",          // DD/MM/YYYY
	"2006/1/2",          // YYYY/MM/DD
	"2-1-2006",          // DD-MM-YYYY
	"2006-1-2 15:04:05", // YYYY-MM-DD HH:MM:SS
	"2/1/2006 15:04:05", // DD/MM/YYYY HH:MM:SS
}

var booleanLiterals = map[string]bool{
	"true": true, "false": true,
	"yes": true, "no": true,
	"1": true, "0": true,
	"y": true, "n": true,
}

// DetectColumnType 根据一列的原始字符串值推断语义类型
// 判断顺序固定：integer > float > boolean > datetime > string，第一个全部匹配的类型胜出
func DetectColumnType(values []string) model.ColumnType {
	present := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return model.ColumnTypeString
	}

	switch {
	case allMatch(present, isInteger):
		return model.ColumnTypeInteger
	case allMatch(present, isFloat):
		return model.ColumnTypeFloat
	case allMatch(present, isBooleanLiteral):
		return model.ColumnTypeBoolean
	}

	for _, layout := range datetimeLayouts {
		if allMatch(present, func(v string) bool {
			_, err := time.Parse(layout, v)
			return err == nil
		}) {
			return model.ColumnTypeDatetime
		}
	}

	return model.ColumnTypeString
}

// DetectColumnTypes 推断表格中每一列的类型，document_id 与 row_id 不参与
func DetectColumnTypes(table *model.Table) model.ColumnTypeMap {
	types := make(model.ColumnTypeMap, len(table.Columns))
	for _, col := range table.Columns {
		if isExcludedField(col) {
			continue
		}
		types[col] = DetectColumnType(table.ColumnValues(col))
	}
	return types
}

func allMatch(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

// 超出 int64 范围的整数按 float 处理，与转换阶段保持一致
func isInteger(v string) bool {
	s, ok := decimalText(v)
	if !ok {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(v string) bool {
	s, ok := decimalText(v)
	if !ok {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// decimalText 规范化十进制数字文本：去掉首尾空白和数字间的单个下划线，
// 拒绝 0x/0b/0o 前缀及位置不合法的下划线
func decimalText(v string) (string, bool) {
	s := strings.TrimSpace(v)
	body := strings.TrimLeft(s, "+-")
	if len(body) > 1 && body[0] == '0' && strings.ContainsRune("xXbBoO", rune(body[1])) {
		return "", false
	}
	if !strings.Contains(s, "_") {
		return s, true
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			continue
		}
		if i == 0 || i == len(s)-1 || !isDigit(s[i-1]) || !isDigit(s[i+1]) {
			return "", false
		}
	}
	return strings.ReplaceAll(s, "_", ""), true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isBooleanLiteral(v string) bool {
	return booleanLiterals[strings.ToLower(strings.TrimSpace(v))]
}

func isExcludedField(name string) bool {
	return name == model.FieldDocumentID || name == model.FieldRowID
}
