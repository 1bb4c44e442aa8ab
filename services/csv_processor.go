package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"producttree/models"
	"producttree/utils"
)

// ErrNoRecords はデータ行が1件もない場合のエラーです
var ErrNoRecords = errors.New("レコードがありません")

// CSVProcessor はCSVファイルの読み込みを担当します
type CSVProcessor struct{}

// NewCSVProcessor は新しいCSVプロセッサーを作成します
func NewCSVProcessor() *CSVProcessor {
	return &CSVProcessor{}
}

// ReadCSVFile はCSVファイルを読み込みます
func (p *CSVProcessor) ReadCSVFile(path string) ([]models.RawRecord, error) {
	utils.LogInfo("CSVファイル '%s' を読み込みます", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("CSVオープンエラー: %w", err)
	}
	defer file.Close()

	return p.ReadCSV(file)
}

// ReadCSV はヘッダー行をキーにして各行をレコードに変換します
// 列数が合わない行は短い方に合わせ、全セルが空の行は読み飛ばします
func (p *CSVProcessor) ReadCSV(r io.Reader) ([]models.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV読み込みエラー: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("CSVヘッダーがありません: %w", ErrNoRecords)
	}

	headers := records[0]
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	result := make([]models.RawRecord, 0, len(records)-1)
	for i, record := range records[1:] {
		if isBlankRow(record) {
			continue
		}
		if len(record) != len(headers) {
			utils.LogDebug("行 %d: フィールド数が不一致（ヘッダー: %d, 行: %d）", i+2, len(headers), len(record))
		}

		rowData := make(models.RawRecord, len(headers))
		for j := 0; j < min(len(headers), len(record)); j++ {
			rowData[headers[j]] = record[j]
		}
		result = append(result, rowData)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("CSVデータが不足しています: %w", ErrNoRecords)
	}

	utils.LogInfo("CSVを読み込みました: %d 行", len(result))
	return result, nil
}

func isBlankRow(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
