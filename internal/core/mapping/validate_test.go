package mapping

import (
	"fmt"
	"testing"

	"fiscal-converter-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strictMapping() domain.ColumnMapping {
	return BuildColumnMapping([]string{"Data", "Valor", "Razao Social", "CNPJ"})
}

func TestValidateRowStrict(t *testing.T) {
	m := strictMapping()

	t.Run("linha válida passa limpa", func(t *testing.T) {
		row := domain.RawRow{
			"Data":         "18/11/2025",
			"Valor":        "3.000,00",
			"Razao Social": "EMPRESA TESTE",
			"CNPJ":         "12.345.678/0001-90",
		}
		assert.Empty(t, ValidateRowStrict(row, m, 1))
	})

	t.Run("cada campo ruim gera sua mensagem", func(t *testing.T) {
		row := domain.RawRow{
			"Data":         "31/02/2025",
			"Valor":        "0,00",
			"Razao Social": "AB",
			"CNPJ":         "123.456.789-00",
		}
		errs := ValidateRowStrict(row, m, 7)
		require.Len(t, errs, 4)
		for _, e := range errs {
			assert.Contains(t, e, "Linha 7:")
		}
	})

	t.Run("CPF de 11 dígitos não passa na régua estrita", func(t *testing.T) {
		row := domain.RawRow{
			"Data":         "18/11/2025",
			"Valor":        "100,00",
			"Razao Social": "FULANO DE TAL",
			"CNPJ":         "123.456.789-09",
		}
		errs := ValidateRowStrict(row, m, 1)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "14 dígitos")
	})

	t.Run("coluna ausente no mapeamento", func(t *testing.T) {
		partial := BuildColumnMapping([]string{"Historico", "Observacao"})
		row := domain.RawRow{"Historico": "x"}
		errs := ValidateRowStrict(row, partial, 3)
		require.Len(t, errs, 4)
		assert.Contains(t, errs[0], "não encontrada")
	})

	t.Run("coluna ausente não suprime os demais erros", func(t *testing.T) {
		partial := BuildColumnMapping([]string{"Valor", "Razao Social", "CNPJ"})
		row := domain.RawRow{
			"Valor":        "0,00",
			"Razao Social": "EMPRESA TESTE",
			"CNPJ":         "12.345.678/0001-90",
		}
		errs := ValidateRowStrict(row, partial, 2)
		require.Len(t, errs, 2)
		assert.Contains(t, errs[0], "não encontrada")
		assert.Contains(t, errs[1], "maior que zero")
	})

	t.Run("data sem zero à esquerda não passa", func(t *testing.T) {
		row := domain.RawRow{
			"Data":         "2/1/2026",
			"Valor":        "100,00",
			"Razao Social": "EMPRESA TESTE",
			"CNPJ":         "12.345.678/0001-90",
		}
		errs := ValidateRowStrict(row, m, 1)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "DD/MM/AAAA")
	})
}

func TestValidateBatch(t *testing.T) {
	m := strictMapping()

	t.Run("lote válido", func(t *testing.T) {
		rows := []domain.RawRow{
			{"Data": "18/11/2025", "Valor": "100,00", "Razao Social": "ACME LTDA", "CNPJ": "12.345.678/0001-90"},
		}
		report := ValidateBatch(rows, m)
		assert.True(t, report.Valid)
		assert.Equal(t, 1, report.RecordCount)
		assert.Zero(t, report.ErrorCount)
	})

	t.Run("excedente resumido após 10 erros", func(t *testing.T) {
		var rows []domain.RawRow
		for i := 0; i < 15; i++ {
			rows = append(rows, domain.RawRow{
				"Data":         "18/11/2025",
				"Valor":        "0,00", // um erro por linha
				"Razao Social": fmt.Sprintf("EMPRESA %02d LTDA", i),
				"CNPJ":         "12.345.678/0001-90",
			})
		}
		report := ValidateBatch(rows, m)
		assert.False(t, report.Valid)
		assert.Equal(t, 15, report.ErrorCount)
		require.Len(t, report.Errors, 11)
		assert.Contains(t, report.Errors[10], "mais 5 erros")
	})
}
