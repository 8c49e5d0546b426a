// Package extract transforma o arquivo de origem (planilha, CSV ou PDF) em
// linhas brutas chaveadas pelo cabeçalho detectado.
package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"fiscal-converter-service/internal/domain"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Result carrega o cabeçalho em ordem de coluna e as linhas brutas.
type Result struct {
	Headers []string
	Rows    []domain.RawRow
}

// palavras-chave que denunciam a linha de cabeçalho em planilhas de clientes
var headerKeywords = []string{
	"data", "valor", "cliente", "cnpj", "cpf", "discriminacao",
	"nota", "serie", "servico", "total", "bruto", "liquido",
}

const headerScanRows = 20

// Headers devolve apenas a linha de cabeçalho detectada do arquivo.
func Headers(file io.Reader, filename string) ([]string, error) {
	res, err := Rows(file, filename, 1)
	if err != nil {
		return nil, err
	}
	return res.Headers, nil
}

// Rows extrai todas as linhas do arquivo como RawRow. Para PDFs delega ao
// parser de linhas; para planilhas e CSV monta a grade e zipa com o
// cabeçalho detectado. limit <= 0 significa sem limite.
func Rows(file io.Reader, filename string, limit int) (*Result, error) {
	if strings.ToLower(filepath.Ext(filename)) == ".pdf" {
		return PdfRows(file, limit)
	}

	grid, err := loadGrid(file, filename)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler arquivo de origem: %w", err)
	}
	return zipGrid(grid, limit), nil
}

// loadGrid carrega todas as células da planilha ativa como strings.
func loadGrid(file io.Reader, filename string) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv":
		return loadCSV(file)
	case ".xls":
		return loadXLS(file)
	default:
		// .xlsx e variantes modernas
		return loadXLSX(file)
	}
}

func loadXLSX(file io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("a planilha não contém abas")
	}
	return f.GetRows(sheets[0])
}

func loadXLS(file io.Reader) ([][]string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	reader := bytes.NewReader(data)

	workbook, err := xls.OpenReader(reader)
	if err != nil {
		// talvez seja xlsx com extensão errada; tentar excelize
		if _, errX := excelize.OpenReader(bytes.NewReader(data)); errX == nil {
			return loadXLSX(bytes.NewReader(data))
		}
		return nil, err
	}

	if len(workbook.GetSheets()) == 0 {
		return nil, fmt.Errorf("o arquivo .xls não contém planilhas")
	}
	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("erro ao obter planilha do arquivo .xls: %w", err)
	}

	var allRows [][]string
	for _, row := range sheet.GetRows() {
		var cells []string
		for _, cell := range row.GetCols() {
			cells = append(cells, cell.GetString())
		}
		allRows = append(allRows, cells)
	}
	return allRows, nil
}

func loadCSV(file io.Reader) ([][]string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var reader *csv.Reader
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		reader = csv.NewReader(bytes.NewReader(data[3:]))
	} else {
		decoder := charmap.ISO8859_1.NewDecoder()
		reader = csv.NewReader(transform.NewReader(bytes.NewReader(data), decoder))
	}

	// arquivos contábeis brasileiros costumam vir com ';'
	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	if bytes.IndexByte(firstLine, ';') >= 0 || bytes.IndexByte(firstLine, ',') < 0 {
		reader.Comma = ';'
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	return reader.ReadAll()
}

// findHeaderRow pontua as primeiras linhas pela contagem de palavras-chave e
// devolve o índice da mais plausível; empate fica com a mais alta, e pontuação
// zero cai na primeira linha.
func findHeaderRow(grid [][]string) int {
	maxScan := headerScanRows
	if len(grid) < maxScan {
		maxScan = len(grid)
	}

	headerRow := 0
	highestScore := 0
	for i := 0; i < maxScan; i++ {
		score := 0
		for _, cell := range grid[i] {
			val := strings.ToLower(strings.TrimSpace(cell))
			if val == "" {
				continue
			}
			for _, kw := range headerKeywords {
				if strings.Contains(val, kw) {
					score++
				}
			}
		}
		if score > highestScore {
			highestScore = score
			headerRow = i
		}
	}
	return headerRow
}

// zipGrid combina cada linha de dados com o cabeçalho detectado. Células
// faltantes viram vazio posicional; cabeçalho vazio recebe nome sintético.
func zipGrid(grid [][]string, limit int) *Result {
	res := &Result{}
	if len(grid) == 0 {
		return res
	}

	headerIdx := findHeaderRow(grid)
	for i, h := range grid[headerIdx] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Coluna_%d", i)
		}
		res.Headers = append(res.Headers, h)
	}

	for _, row := range grid[headerIdx+1:] {
		rawRow := make(domain.RawRow, len(res.Headers))
		for i, h := range res.Headers {
			if i < len(row) {
				rawRow[h] = row[i]
			} else {
				rawRow[h] = ""
			}
		}
		res.Rows = append(res.Rows, rawRow)

		if limit > 0 && len(res.Rows) >= limit {
			break
		}
	}
	return res
}
