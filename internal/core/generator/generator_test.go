package generator

import (
	"strings"
	"testing"

	"fiscal-converter-service/internal/core/mapping"
	"fiscal-converter-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRps(numero int, valor float64) domain.Rps {
	return domain.Rps{
		Numero:      numero,
		Serie:       "1",
		Tipo:        "1",
		DataEmissao: "2025-11-18",
		Competencia: "2025-11-18",
		Tomador: domain.Tomador{
			CpfCnpj:     "12345678000190",
			RazaoSocial: "EMPRESA TESTE",
			Endereco: domain.Endereco{
				CodigoMunicipio: "2927408",
				UF:              "BA",
				CEP:             "40000000",
				XMun:            "Salvador",
			},
		},
		Servico: domain.Servico{
			ValorServico:     valor,
			IssRetido:        2,
			BaseCalculo:      valor,
			ValorLiquidoNfse: valor,
			ItemListaServico: "0101",
			Discriminacao:    "EMPRESA TESTE",
			CodigoMunicipio:  "2927408",
		},
	}
}

func sampleProvider() domain.ProviderInfo {
	return domain.ProviderInfo{
		Cnpj:               "98765432000110",
		RazaoSocial:        "IMOBILIARIA EXEMPLO LTDA",
		InscricaoMunicipal: "123456",
		Endereco:           "AV SETE DE SETEMBRO",
		Bairro:             "VITORIA",
		Municipio:          "Salvador",
		UF:                 "BA",
		CEP:                "40060001",
	}
}

func TestForFormat(t *testing.T) {
	t.Run("todos os formatos conhecidos resolvem", func(t *testing.T) {
		for _, f := range []domain.OutputFormat{
			domain.FormatServico, domain.FormatSaida, domain.FormatDominioTxt, domain.FormatCSV,
		} {
			gen, err := ForFormat(f)
			require.NoError(t, err)
			assert.NotNil(t, gen)
		}
	})

	t.Run("formato desconhecido falha antes de processar", func(t *testing.T) {
		_, err := ForFormat(domain.OutputFormat(99))
		assert.Error(t, err)
	})
}

func TestFormatMoneyBRRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 0.01, 1, 999.99, 1000, 3000, 31317.98, 1234567.89} {
		formatted := formatMoneyBR(v)
		assert.InDelta(t, v, mapping.ParseAmount(formatted), 0.005, "valor %v formatado como %q", v, formatted)
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "3000,00", formatMoneyComma(3000))
	assert.Equal(t, "0,00", formatMoneyComma(0))
	assert.Equal(t, "3000.00", formatMoneyDot(3000))
	assert.Equal(t, "3.000,00", formatMoneyBR(3000))
	assert.Equal(t, "1.234.567,89", formatMoneyBR(1234567.89))
	assert.Equal(t, "18/11/2025", formatDateBR("2025-11-18"))
}

func TestCfopFor(t *testing.T) {
	assert.Equal(t, "5949", cfopFor("BA", "BA"))
	assert.Equal(t, "5949", cfopFor("ba", "BA"))
	assert.Equal(t, "6949", cfopFor("SP", "BA"))
}

func TestNfseGenerator(t *testing.T) {
	gen, err := ForFormat(domain.FormatServico)
	require.NoError(t, err)
	assert.Equal(t, "xml", gen.Extension())

	content, err := gen.GenerateBatch([]domain.Rps{sampleRps(1, 3000)}, "LOTE-1", sampleProvider(), domain.Options{})
	require.NoError(t, err)
	xml := string(content)

	assert.Contains(t, xml, `encoding="ISO-8859-1"`)
	assert.Contains(t, xml, `xmlns="http://www.abrasf.org.br/ABRASF/arquivos/nfse.xsd"`)
	assert.Contains(t, xml, "<ValorServicos>3000,00</ValorServicos>")
	assert.Contains(t, xml, "<Cnpj>12345678000190</Cnpj>")
	assert.Contains(t, xml, "<Cnpj>98765432000110</Cnpj>")
	assert.Contains(t, xml, "<DataEmissao>2025-11-18T00:00:00-03:00</DataEmissao>")
	assert.Contains(t, xml, "<Competencia>2025-11-01T00:00:00-03:00</Competencia>")
	assert.Contains(t, xml, "<NaturezaOperacao>1</NaturezaOperacao>")
	assert.Contains(t, xml, "<OptanteSimplesNacional>1</OptanteSimplesNacional>")
	assert.Contains(t, xml, "<NfseSubstituida>0</NfseSubstituida>")
	assert.Contains(t, xml, "<Status>Rascunho</Status>")
	assert.Contains(t, xml, "IMPORTACAO MANUAL - NAO LANCAR AUTOMATICAMENTE")
	assert.Equal(t, 1, strings.Count(xml, "<CompNfse>"))

	t.Run("blocos fixos do layout municipal", func(t *testing.T) {
		// órgão gerador e construção civil fecham o InfNfse
		assert.Contains(t, xml, "<OrgaoGerador>")
		assert.Contains(t, xml, "<ConstrucaoCivil>")
		assert.Contains(t, xml, "<CodigoObra></CodigoObra>")
		assert.Contains(t, xml, "<Art></Art>")
		assert.Equal(t, 2, strings.Count(xml, "<Contato>"))
		// Status e OutrasInformacoes precedem o bloco Servico
		assert.Less(t, strings.Index(xml, "<Status>"), strings.Index(xml, "<Servico>"))
		assert.Less(t, strings.Index(xml, "<OutrasInformacoes>"), strings.Index(xml, "<Servico>"))
	})
}

func TestNfseVerificationCode(t *testing.T) {
	code := verificationCode(1, "2025-11-18")
	assert.Len(t, code, 8)
	assert.Equal(t, strings.ToUpper(code), code)
	// determinístico para o mesmo par número + data
	assert.Equal(t, code, verificationCode(1, "2025-11-18"))
	assert.NotEqual(t, code, verificationCode(2, "2025-11-18"))
}

func TestNfseCpfTag(t *testing.T) {
	gen, _ := ForFormat(domain.FormatServico)
	rps := sampleRps(1, 100)
	rps.Tomador.CpfCnpj = "12345678909"

	content, err := gen.GenerateBatch([]domain.Rps{rps}, "L", sampleProvider(), domain.Options{})
	require.NoError(t, err)
	assert.Contains(t, string(content), "<Cpf>12345678909</Cpf>")
	assert.NotContains(t, string(content), "<Cnpj>12345678909</Cnpj>")
}

func TestMod11CheckDigit(t *testing.T) {
	t.Run("idempotente sobre os 43 primeiros dígitos da chave", func(t *testing.T) {
		base := "2925119876543200011044001000000001100000001"
		require.Len(t, base, 43)
		dv := Mod11CheckDigit(base)
		key := base + string(rune('0'+dv))
		require.Len(t, key, 44)
		assert.Equal(t, dv, Mod11CheckDigit(key[:43]))
	})

	t.Run("resto 0 ou 1 resulta em dígito 0", func(t *testing.T) {
		// soma com resto 1: um único dígito 6 com peso 2 -> 12 % 11 = 1
		assert.Equal(t, 0, Mod11CheckDigit("6"))
	})
}

func TestNfeGenerator(t *testing.T) {
	gen, err := ForFormat(domain.FormatSaida)
	require.NoError(t, err)
	assert.Equal(t, "xml", gen.Extension())

	content, err := gen.GenerateBatch([]domain.Rps{sampleRps(1, 3000)}, "LOTE-7", sampleProvider(), domain.Options{State: "BA", StartingNumber: 5})
	require.NoError(t, err)
	xml := string(content)

	assert.Contains(t, xml, `versao="4.00"`)
	assert.Contains(t, xml, "<nNF>5</nNF>")
	assert.Contains(t, xml, "<CFOP>5949</CFOP>")
	assert.Contains(t, xml, "<vProd>3000.00</vProd>")
	assert.Contains(t, xml, "<pPIS>0.65</pPIS>")
	assert.Contains(t, xml, "<vPIS>19.50</vPIS>")
	assert.Contains(t, xml, "<pCOFINS>3.00</pCOFINS>")
	assert.Contains(t, xml, "<vCOFINS>90.00</vCOFINS>")
	assert.Contains(t, xml, "REF ID: LOTE-7")

	// Id = "NFe" + chave de 44 dígitos iniciada pelo código da UF e AAMM
	start := strings.Index(xml, `Id="NFe`)
	require.GreaterOrEqual(t, start, 0)
	key := xml[start+len(`Id="NFe`) : start+len(`Id="NFe`)+44]
	assert.Len(t, key, 44)
	assert.Equal(t, "29", key[:2])
	assert.Equal(t, "2511", key[2:6])
	assert.Equal(t, "44", key[20:22])
	assert.Equal(t, "001", key[22:25])
	dv := Mod11CheckDigit(key[:43])
	assert.Equal(t, string(rune('0'+dv)), key[43:])
}

func TestNfeCfopForaDoEstado(t *testing.T) {
	gen, _ := ForFormat(domain.FormatSaida)
	rps := sampleRps(1, 100)
	rps.Tomador.Endereco.UF = "SP"

	content, err := gen.GenerateBatch([]domain.Rps{rps}, "L", sampleProvider(), domain.Options{State: "BA"})
	require.NoError(t, err)
	assert.Contains(t, string(content), "<CFOP>6949</CFOP>")
	assert.Contains(t, string(content), "<idDest>2</idDest>")
}

func TestDominioGenerator(t *testing.T) {
	gen, err := ForFormat(domain.FormatDominioTxt)
	require.NoError(t, err)
	assert.Equal(t, "txt", gen.Extension())

	content, err := gen.GenerateBatch([]domain.Rps{sampleRps(3, 1500.5), sampleRps(4, 200)}, "L", sampleProvider(), domain.Options{State: "BA", Acumulador: "7"})
	require.NoError(t, err)

	lines := strings.Split(string(content), "\r\n")
	require.Len(t, lines, 2)

	cols := strings.Split(lines[0], ";")
	require.Len(t, cols, 33)
	assert.Equal(t, "12345678000190", cols[0])
	assert.Equal(t, "EMPRESA TESTE", cols[1])
	assert.Equal(t, "BA", cols[2])
	assert.Equal(t, "Salvador", cols[3])
	assert.Equal(t, "3", cols[5])
	assert.Equal(t, "1", cols[6])
	assert.Equal(t, "18/11/2025", cols[7])
	assert.Equal(t, "0", cols[8])
	assert.Equal(t, "7", cols[9])
	assert.Equal(t, "5949", cols[10])
	assert.Equal(t, "1500,50", cols[11])
	assert.Equal(t, "0,00", cols[12])
	assert.Equal(t, "1500,50", cols[13])
	assert.Equal(t, "", cols[24])
	assert.Equal(t, "", cols[27])
	assert.Equal(t, "0,00", cols[32])

	t.Run("endereço com vírgula e campos saneados", func(t *testing.T) {
		rps := sampleRps(9, 100)
		rps.Tomador.RazaoSocial = "EMPRESA;COM|SEPARADOR"
		rps.Tomador.Endereco.Logradouro = "RUA DA PAZ"
		rps.Tomador.Endereco.Numero = "42"

		content, err := gen.GenerateBatch([]domain.Rps{rps}, "L", sampleProvider(), domain.Options{State: "BA"})
		require.NoError(t, err)

		cols := strings.Split(string(content), ";")
		require.Len(t, cols, 33)
		assert.Equal(t, "EMPRESA COM SEPARADOR", cols[1])
		assert.Equal(t, "RUA DA PAZ, 42", cols[4])
	})

	t.Run("CFOP fora do estado", func(t *testing.T) {
		rps := sampleRps(1, 100)
		rps.Tomador.Endereco.UF = "SP"

		content, err := gen.GenerateBatch([]domain.Rps{rps}, "L", sampleProvider(), domain.Options{State: "BA"})
		require.NoError(t, err)

		cols := strings.Split(string(content), ";")
		assert.Equal(t, "SP", cols[2])
		assert.Equal(t, "6949", cols[10])
	})
}

func TestCSVGenerator(t *testing.T) {
	gen, err := ForFormat(domain.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "csv", gen.Extension())

	rps := sampleRps(1, 3000)
	rps.Servico.Discriminacao = "ALUGUEL\nIMOVEL COMERCIAL"

	content, err := gen.GenerateBatch([]domain.Rps{rps}, "L", sampleProvider(), domain.Options{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(content), "\xEF\xBB\xBF"), "deve começar com BOM UTF-8")

	body := strings.TrimPrefix(string(content), "\xEF\xBB\xBF")
	lines := strings.Split(strings.TrimRight(body, "\r\n"), "\r\n")
	require.Len(t, lines, 2)

	header := strings.Split(lines[0], ";")
	require.Len(t, header, 23)
	assert.Equal(t, "Data Emissão", header[0])
	assert.Equal(t, "Competência", header[1])
	assert.Equal(t, "Valor Serviço", header[4])
	assert.Equal(t, "ISS Retido", header[20])
	assert.Equal(t, "Valor Base Cálculo", header[22])

	record := strings.Split(lines[1], ";")
	require.Len(t, record, 23)
	assert.Equal(t, "18/11/2025", record[0])
	assert.Equal(t, "11/2025", record[1])
	assert.Equal(t, "1", record[2])
	assert.Equal(t, "1", record[3])
	assert.Equal(t, "3.000,00", record[4])
	// colunas do prestador em branco, o contador preenche no destino
	assert.Equal(t, "", record[5])
	assert.Equal(t, "", record[6])
	assert.Equal(t, "12345678000190", record[7])
	assert.Equal(t, "EMPRESA TESTE", record[8])
	assert.Equal(t, "ALUGUEL IMOVEL COMERCIAL", record[17])
	assert.Equal(t, "0101", record[18])
	assert.Equal(t, "N", record[20])
	assert.Equal(t, "0,00", record[21])
	assert.Equal(t, "3.000,00", record[22])
}
