package extract

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"fiscal-converter-service/internal/domain"

	"github.com/ledongthuc/pdf"
)

// Cabeçalhos fixos das linhas extraídas de PDF. Extratos não têm grade de
// colunas, então cada layout entrega sempre estes quatro campos.
var pdfHeaders = []string{"Data", "Valor", "Razao Social", "CNPJ"}

const (
	dateToken = `\d{2}[/.]\d{2}[/.](?:\d{4}|\d{2})`
	// aceita CPF e CNPJ pontuados, tolerando um separador espúrio antes do
	// par de dígitos verificadores (ruído de OCR/exportação)
	taxIDToken = `\d{2,3}[./,-]\d{3}[./,-]\d{3}[./,-][\d./,-]+\d{1,2}`
)

var (
	dateRegex        = regexp.MustCompile(`(` + dateToken + `)`)
	partialDateRegex = regexp.MustCompile(`\b(\d{2}[/.]\d{4})\b`)

	// layout extrato bancário: data, valor (possivelmente colado no nome),
	// trecho livre, CPF/CNPJ
	bankLineRegex = regexp.MustCompile(`(` + dateToken + `)\s+([\d.,]+)(.+?)(` + taxIDToken + `)`)

	// layout padrão A: data, valor, nome, CPF/CNPJ na mesma linha
	standardARegex = regexp.MustCompile(`(` + dateToken + `)\s+([\d.,]+(?:R\$)?)\s+(.+?)\s+(` + taxIDToken + `)`)

	// layout padrão B: nome, CPF/CNPJ, valor, data (ordem invertida)
	standardBRegex = regexp.MustCompile(`(.+?)\s+(` + taxIDToken + `)\s+([\d.,]+(?:R\$)?)\s+(` + dateToken + `)`)

	// layout quebrado em linhas: "NOME 15.338,91R$" ou "NOME - R$ 15.338,91",
	// com CPF/CNPJ e data recuperados das linhas vizinhas
	splitValueRegex = regexp.MustCompile(`(.+?)\s+([\d.,]+)R\$`)
	splitDashRegex  = regexp.MustCompile(`(.+?)\s+-\s+R\$\s*([\d.,]+)`)

	currencyOnlyRegex = regexp.MustCompile(`^[\d.,]+(?:R\$)?$`)
	middleSplitRegex  = regexp.MustCompile(`\t+|\s{4,}`)
	descSuffixRegex   = regexp.MustCompile(`(?i)\s+(ALUGUEL|VENDA|LOCACAO|SERVICO|PRESTACAO)\s+\w+\s*$`)
	unitBleedRegex    = regexp.MustCompile(`(?i)\b(UND|UN|UNID)\b`)
	lookbackTaxID     = regexp.MustCompile(`\d{2,3}\.\d{3}\.\d{3}[/-]\d{2,4}-?\d{0,2}`)
)

// PdfRows extrai o texto do PDF e aplica os layouts de linha em ordem de
// prioridade. limit <= 0 significa sem limite.
func PdfRows(file io.Reader, limit int) (*Result, error) {
	text, err := readPdfText(file)
	if err != nil {
		return nil, fmt.Errorf("erro ao extrair texto do PDF: %w", err)
	}

	rows := ParseStatementText(text)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return &Result{Headers: append([]string(nil), pdfHeaders...), Rows: rows}, nil
}

func readPdfText(file io.Reader) (string, error) {
	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(file)
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(bytes.NewReader(buf.Bytes()), size)
	if err != nil {
		return "", err
	}

	var content strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		content.WriteString(text)
		content.WriteByte('\n')
	}
	return content.String(), nil
}

// scanState é o acumulador explícito da varredura: a última data vista no
// documento, usada pelos layouts multi-linha como contexto.
type scanState struct {
	lastSeenDate string
}

// ParseStatementText varre o texto linha a linha aplicando os layouts em
// ordem fixa de prioridade; a primeira correspondência vence e cada linha
// produz no máximo uma RawRow.
func ParseStatementText(text string) []domain.RawRow {
	lines := strings.Split(text, "\n")
	var rows []domain.RawRow
	st := &scanState{}

	for i := range lines {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		// contexto: qualquer data (ou mês/ano parcial) renova a memória
		if m := dateRegex.FindStringSubmatch(line); m != nil {
			st.lastSeenDate = m[1]
		} else if m := partialDateRegex.FindStringSubmatch(line); m != nil {
			st.lastSeenDate = "01/" + strings.ReplaceAll(m[1], ".", "/")
		}

		if row, ok := matchBankLine(line, st); ok {
			rows = append(rows, row)
			continue
		}
		if row, ok := matchStandardA(line, st); ok {
			rows = append(rows, row)
			continue
		}
		if row, ok := matchStandardB(line, st); ok {
			rows = append(rows, row)
			continue
		}
		if row, ok := matchSplitLine(lines, i, st); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// matchBankLine cobre extratos em que valor e nome saem colados e a descrição
// ("ALUGUEL IMOVEL" etc.) vaza para dentro do campo de nome.
func matchBankLine(line string, st *scanState) (domain.RawRow, bool) {
	m := bankLineRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	date := m[1]
	st.lastSeenDate = date
	value := cleanCurrency(m[2])
	middle := m[3]
	taxID := m[4]

	// separa nome de ruído/descrição: TAB ou 4+ espaços delimitam colunas
	var name string
	for _, part := range middleSplitRegex.Split(middle, -1) {
		part = strings.TrimSpace(part)
		if part == "" || currencyOnlyRegex.MatchString(part) {
			continue
		}
		name = part
		break
	}

	name = strings.TrimSpace(descSuffixRegex.ReplaceAllString(name, ""))
	if name == "" || taxID == "" {
		return nil, false
	}

	return domain.RawRow{
		"Data":         date,
		"Valor":        value,
		"Razao Social": name,
		"CNPJ":         taxID,
	}, true
}

func matchStandardA(line string, st *scanState) (domain.RawRow, bool) {
	m := standardARegex.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	st.lastSeenDate = m[1]
	return domain.RawRow{
		"Data":         m[1],
		"Valor":        cleanCurrency(m[2]),
		"Razao Social": cleanExtractedName(m[3]),
		"CNPJ":         m[4],
	}, true
}

func matchStandardB(line string, st *scanState) (domain.RawRow, bool) {
	m := standardBRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	st.lastSeenDate = m[4]
	return domain.RawRow{
		"Data":         m[4],
		"Valor":        cleanCurrency(m[3]),
		"Razao Social": cleanExtractedName(m[1]),
		"CNPJ":         m[2],
	}, true
}

// matchSplitLine resolve registros quebrados em mais de uma linha: o nome e o
// valor vêm juntos ("JURIDICO 15.338,91R$") e o CPF/CNPJ é buscado até 3
// linhas para trás; a data vem da memória da varredura ou de até 3 linhas à
// frente.
func matchSplitLine(lines []string, i int, st *scanState) (domain.RawRow, bool) {
	line := strings.TrimSpace(lines[i])

	m := splitValueRegex.FindStringSubmatch(line)
	if m == nil {
		m = splitDashRegex.FindStringSubmatch(line)
	}
	if m == nil {
		return nil, false
	}

	name := strings.ReplaceAll(strings.TrimSpace(m[1]), "<>", "")
	name = strings.TrimRight(name, "- ")
	name = strings.TrimSpace(unitBleedRegex.ReplaceAllString(name, ""))
	value := cleanCurrency(m[2])

	var taxID string
	for j := 0; j <= 3 && i-j >= 0; j++ {
		if found := lookbackTaxID.FindString(lines[i-j]); found != "" {
			taxID = found
			break
		}
	}
	if taxID == "" {
		return nil, false
	}

	date := st.lastSeenDate
	if date == "" {
		for k := 1; k <= 3 && i+k < len(lines); k++ {
			if dm := dateRegex.FindStringSubmatch(lines[i+k]); dm != nil {
				date = dm[1]
				st.lastSeenDate = date
				break
			}
		}
	}

	return domain.RawRow{
		"Data":         date,
		"Valor":        value,
		"Razao Social": name,
		"CNPJ":         taxID,
	}, true
}

func cleanCurrency(s string) string {
	s = strings.ReplaceAll(s, "R$", "")
	return strings.ReplaceAll(s, " ", "")
}

func cleanExtractedName(s string) string {
	return strings.TrimSpace(unitBleedRegex.ReplaceAllString(s, ""))
}
