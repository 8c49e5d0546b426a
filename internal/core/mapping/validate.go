package mapping

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"fiscal-converter-service/internal/domain"
)

// maxReportedErrors limita o relatório devolvido ao cliente; o excedente é
// resumido em uma linha final.
const maxReportedErrors = 10

// ValidationReport é o resultado da validação estrita de um lote.
type ValidationReport struct {
	Valid       bool     `json:"valido"`
	RecordCount int      `json:"total_registros"`
	ErrorCount  int      `json:"total_erros"`
	Errors      []string `json:"erros,omitempty"`
}

// strictDateRegex exige dia e mês com dois dígitos; "2/1/2026" não passa.
var strictDateRegex = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// ValidateRowStrict aplica as regras estritas a uma linha bruta: data real no
// formato DD/MM/AAAA, valor maior que zero, razão social com pelo menos 3
// caracteres e CNPJ com exatamente 14 dígitos. Cada campo é validado de forma
// independente; coluna ausente gera o próprio erro sem suprimir os demais.
// Esta régua é deliberadamente mais estreita que o filtro de admissão (CPF
// não passa aqui).
func ValidateRowStrict(row domain.RawRow, mapping domain.ColumnMapping, rowIndex int) []string {
	var errs []string

	if rawDate, ok := mapping.Value(row, domain.FieldData); !ok {
		errs = append(errs, fmt.Sprintf("Linha %d: coluna %q não encontrada na planilha", rowIndex, domain.FieldData))
	} else {
		trimmed := strings.TrimSpace(rawDate)
		_, err := time.Parse("02/01/2006", trimmed)
		if !strictDateRegex.MatchString(trimmed) || err != nil {
			errs = append(errs, fmt.Sprintf("Linha %d: data %q inválida, esperado DD/MM/AAAA", rowIndex, rawDate))
		}
	}

	if rawValue, ok := mapping.Value(row, domain.FieldValor); !ok {
		errs = append(errs, fmt.Sprintf("Linha %d: coluna %q não encontrada na planilha", rowIndex, domain.FieldValor))
	} else if ParseAmount(rawValue) <= 0 {
		errs = append(errs, fmt.Sprintf("Linha %d: valor %q deve ser maior que zero", rowIndex, rawValue))
	}

	if rawName, ok := mapping.Value(row, domain.FieldRazaoSocial); !ok {
		errs = append(errs, fmt.Sprintf("Linha %d: coluna %q não encontrada na planilha", rowIndex, domain.FieldRazaoSocial))
	} else if utf8.RuneCountInString(strings.TrimSpace(rawName)) < 3 {
		errs = append(errs, fmt.Sprintf("Linha %d: razão social %q muito curta", rowIndex, rawName))
	}

	if rawTaxID, ok := mapping.Value(row, domain.FieldCnpj); !ok {
		errs = append(errs, fmt.Sprintf("Linha %d: coluna %q não encontrada na planilha", rowIndex, domain.FieldCnpj))
	} else if digits := DigitsOnly(rawTaxID); len(digits) != 14 {
		errs = append(errs, fmt.Sprintf("Linha %d: CNPJ %q deve ter 14 dígitos", rowIndex, rawTaxID))
	}

	return errs
}

// ValidateBatch roda a validação estrita sobre todas as linhas e monta o
// relatório, cortando a lista de erros em maxReportedErrors.
func ValidateBatch(rows []domain.RawRow, mapping domain.ColumnMapping) ValidationReport {
	var all []string
	for i, row := range rows {
		all = append(all, ValidateRowStrict(row, mapping, i+1)...)
	}

	report := ValidationReport{
		Valid:       len(all) == 0,
		RecordCount: len(rows),
		ErrorCount:  len(all),
	}
	if len(all) > maxReportedErrors {
		rest := len(all) - maxReportedErrors
		all = append(all[:maxReportedErrors], fmt.Sprintf("... e mais %d erros", rest))
	}
	report.Errors = all
	return report
}
