package mapping

import (
	"testing"

	"fiscal-converter-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildColumnMapping(t *testing.T) {
	t.Run("coluna Total serve como valor", func(t *testing.T) {
		headers := []string{"Data Doc", "Historico", "Total", "CNPJ Prestador"}
		m := BuildColumnMapping(headers)

		assert.Equal(t, "Total", m[domain.FieldValor])
		assert.Equal(t, "CNPJ Prestador", m[domain.FieldCnpj])

		// nenhum apelido de data cobre "Data Doc"
		_, ok := m[domain.FieldData]
		assert.False(t, ok)
	})

	t.Run("Locatários com acento vira razão social", func(t *testing.T) {
		headers := []string{"Data", "Valor", "Locatários", "CPF"}
		m := BuildColumnMapping(headers)

		assert.Equal(t, "Locatários", m[domain.FieldRazaoSocial])
		assert.Equal(t, "Valor", m[domain.FieldValor])
		assert.Equal(t, "CPF", m[domain.FieldCnpj])

		// "Data" literal resolve pelo cabeçalho padrão do campo, não pelo apelido
		_, ok := m[domain.FieldData]
		assert.False(t, ok)
		assert.Equal(t, "Data", m.Source(domain.FieldData))
	})

	t.Run("apelido exato vence o substring", func(t *testing.T) {
		headers := []string{"Valor Liquido", "Valor Bruto"}
		m := BuildColumnMapping(headers)
		assert.Equal(t, "Valor Bruto", m[domain.FieldValor])
	})
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"3.000,00", 3000.00},
		{"31.317,98", 31317.98},
		{"1234.56", 1234.56},
		{"R$ 1.500,50", 1500.50},
		{"0,00", 0},
		{"", 0},
		{"abc", 0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, ParseAmount(tc.in), 0.001, "entrada %q", tc.in)
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-11-18", "2025-11-18"},
		{"2025-11-18 10:30:00", "2025-11-18"},
		{"18/11/2025", "2025-11-18"},
		{"4/1/2025", "2025-01-04"},
		{"04/11/25", "2025-11-04"},
		{"18.11.2025", "2025-11-18"},
		{"sem data", "2000-01-01"},
		{"", "2000-01-01"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeDate(tc.in), "entrada %q", tc.in)
	}
}

func TestCleanRazaoSocial(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.234,56 EMPRESA TESTE LTDA", "EMPRESA TESTE LTDA"},
		{"ACME LTDA 12.345.678/0001-90", "ACME LTDA"},
		{"FULANO DE TAL FISICO", "FULANO DE TAL"},
		{"EMPRESA <> TESTE", "EMPRESA TESTE"},
		{"  ACME  ", "ACME"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanRazaoSocial(tc.in), "entrada %q", tc.in)
	}
}

func TestMapRowsAdmissao(t *testing.T) {
	headers := []string{"Data", "Valor", "Razao Social", "CNPJ"}
	m := BuildColumnMapping(headers)

	rows := []domain.RawRow{
		{"Data": "18/11/2025", "Valor": "500,00", "Razao Social": "TOTAL GERAL", "CNPJ": "12.345.678/0001-90"},
		{"Data": "18/11/2025", "Valor": "500,00", "Razao Social": "", "CNPJ": ""},
		{"Data": "18/11/2025", "Valor": "0,00", "Razao Social": "ACME LTDA", "CNPJ": "12345678901234"},
		{"Data": "18/11/2025", "Valor": "0,00", "Razao Social": "SEM DOCUMENTO LTDA", "CNPJ": ""},
		{"Data": "18/11/2025", "Valor": "300,00", "Razao Social": "CLIENTE", "CNPJ": "12.345.678/0001-90"},
	}

	result := MapRows(rows, m, domain.Options{})
	require.Len(t, result, 1)
	assert.Equal(t, "ACME LTDA", result[0].Tomador.RazaoSocial)
	assert.Equal(t, "12345678901234", result[0].Tomador.CpfCnpj)
}

func TestMapRowsNumeracao(t *testing.T) {
	headers := []string{"Data", "Valor", "Razao Social", "CNPJ"}
	m := BuildColumnMapping(headers)

	rows := []domain.RawRow{
		{"Data": "01/11/2025", "Valor": "100,00", "Razao Social": "PRIMEIRA LTDA", "CNPJ": "11.111.111/0001-11"},
		{"Data": "02/11/2025", "Valor": "999,00", "Razao Social": "TOTAL DO MES", "CNPJ": ""},
		{"Data": "03/11/2025", "Valor": "200,00", "Razao Social": "SEGUNDA LTDA", "CNPJ": "22.222.222/0001-22"},
		{"Data": "04/11/2025", "Valor": "300,00", "Razao Social": "TERCEIRA LTDA", "CNPJ": "33.333.333/0001-33"},
	}

	result := MapRows(rows, m, domain.Options{})
	require.Len(t, result, 3)
	for i, rps := range result {
		assert.Equal(t, i+1, rps.Numero, "numeração deve crescer de 1 em 1 mesmo com descartes")
	}

	t.Run("número inicial das opções não desloca a numeração do lote", func(t *testing.T) {
		result := MapRows(rows, m, domain.Options{StartingNumber: 5})
		require.Len(t, result, 3)
		for i, rps := range result {
			assert.Equal(t, i+1, rps.Numero)
		}
	})
}

func TestMapRowsNormalizacao(t *testing.T) {
	headers := []string{"Data", "Valor", "Razao Social", "CNPJ"}
	m := BuildColumnMapping(headers)

	rows := []domain.RawRow{
		{"Data": "18/11/2025", "Valor": "3.000,00", "Razao Social": "EMPRESA TESTE", "CNPJ": "12.345.678/0001-90"},
	}
	result := MapRows(rows, m, domain.Options{})
	require.Len(t, result, 1)

	rps := result[0]
	assert.Equal(t, "2025-11-18", rps.DataEmissao)
	assert.InDelta(t, 3000.00, rps.Servico.ValorServico, 0.001)
	assert.Equal(t, "12345678000190", rps.Tomador.CpfCnpj)
	assert.Equal(t, "1", rps.Serie)
	assert.Equal(t, "1", rps.Tipo)
	assert.Equal(t, "0101", rps.Servico.ItemListaServico)
	assert.Equal(t, 2, rps.Servico.IssRetido)
	assert.InDelta(t, 3000.00, rps.Servico.BaseCalculo, 0.001)
	assert.Equal(t, "2927408", rps.Servico.CodigoMunicipio)
}

func TestMapRowsCompetenciaFallback(t *testing.T) {
	headers := []string{"Data", "Valor", "Razao Social", "CNPJ", "Competencia"}
	m := BuildColumnMapping(headers)
	// "Competencia" também é apelido de data; forçar o mapeamento na coluna Data
	m[domain.FieldData] = "Data"

	rows := []domain.RawRow{
		{"Data": "ilegivel", "Valor": "100,00", "Razao Social": "EMPRESA LTDA", "CNPJ": "12.345.678/0001-90", "Competencia": "202511"},
	}
	result := MapRows(rows, m, domain.Options{})
	require.Len(t, result, 1)
	assert.Equal(t, "2025-11-01", result[0].DataEmissao)
}
