// package domain/models.go
package domain

import "fmt"

// Field identifica um campo canônico da nota resolvível a partir de uma
// coluna de origem.
type Field int

// Campos canônicos reconhecidos pelo mapeador de colunas.
const (
	FieldData Field = iota
	FieldValor
	FieldRazaoSocial
	FieldCnpj
	FieldLogradouro
	FieldNumero
	FieldComplemento
	FieldBairro
	FieldMunicipio
	FieldUF
	FieldCEP
)

var fieldNames = map[Field]string{
	FieldData:        "Data",
	FieldValor:       "Valor",
	FieldRazaoSocial: "Razao Social",
	FieldCnpj:        "CNPJ",
	FieldLogradouro:  "Logradouro",
	FieldNumero:      "Numero",
	FieldComplemento: "Complemento",
	FieldBairro:      "Bairro",
	FieldMunicipio:   "Municipio",
	FieldUF:          "UF",
	FieldCEP:         "CEP",
}

// AllFields lista todos os campos canônicos na ordem de exibição.
var AllFields = []Field{
	FieldData, FieldValor, FieldRazaoSocial, FieldCnpj,
	FieldLogradouro, FieldNumero, FieldComplemento, FieldBairro,
	FieldMunicipio, FieldUF, FieldCEP,
}

// String devolve o nome de exibição do campo, que também serve de cabeçalho
// padrão quando nenhuma coluna real foi detectada.
func (f Field) String() string {
	return fieldNames[f]
}

// RawRow é uma linha bruta extraída do arquivo de origem: cabeçalho -> célula.
type RawRow map[string]string

// ColumnMapping resolve cada campo canônico para o cabeçalho real da coluna
// de origem. Campos não detectados ficam com o nome de exibição do campo,
// de modo que a consulta na linha simplesmente não encontra valor.
type ColumnMapping map[Field]string

// Source devolve o cabeçalho de origem mapeado para o campo.
func (m ColumnMapping) Source(f Field) string {
	if src, ok := m[f]; ok && src != "" {
		return src
	}
	return f.String()
}

// Value busca um campo numa linha bruta através do mapeamento.
func (m ColumnMapping) Value(row RawRow, f Field) (string, bool) {
	v, ok := row[m.Source(f)]
	return v, ok
}

// --- Modelos do registro canônico (RPS) ---

// Endereco carrega o endereço do tomador. Campos vazios preservam a ausência
// da origem para os geradores aplicarem seus próprios padrões.
type Endereco struct {
	Logradouro      string
	Numero          string
	Complemento     string
	Bairro          string
	CodigoMunicipio string // IBGE; vazio quando não resolvido
	UF              string
	CEP             string
	XMun            string // nome do município, quando o código é desconhecido
}

// Tomador é o pagador do serviço.
type Tomador struct {
	CpfCnpj            string // só dígitos, 11 (CPF) ou 14 (CNPJ)
	RazaoSocial        string
	InscricaoMunicipal string
	Endereco           Endereco
}

// Servico reúne os campos monetários e tributários de um registro.
type Servico struct {
	ValorServico              float64
	ValorDeducoes             float64
	ValorPis                  float64
	ValorCofins               float64
	ValorInss                 float64
	ValorIr                   float64
	ValorCsll                 float64
	IssRetido                 int // 1=retido, 2=não retido
	ValorIss                  float64
	OutrasRetencoes           float64
	BaseCalculo               float64
	Aliquota                  float64
	ValorLiquidoNfse          float64
	DescontoIncondicionado    float64
	DescontoCondicionado      float64
	ItemListaServico          string
	CodigoCnae                string
	CodigoTributacaoMunicipio string
	Discriminacao             string
	CodigoMunicipio           string
}

// Rps é a unidade normalizada de trabalho: um recibo provisório de serviço.
type Rps struct {
	Numero      int    // sequencial, começando em 1 dentro do lote
	Serie       string // constante "1"
	Tipo        string // "1" = RPS
	DataEmissao string // ISO AAAA-MM-DD
	Competencia string // ISO AAAA-MM-DD, cai em DataEmissao quando ausente
	Tomador     Tomador
	Servico     Servico
}

// ProviderInfo descreve o prestador emissor, constante para o lote inteiro.
type ProviderInfo struct {
	Cnpj               string
	RazaoSocial        string
	InscricaoMunicipal string
	Endereco           string
	Bairro             string
	Municipio          string
	UF                 string
	CEP                string
	Fone               string
}

// Options são as opções de geração fornecidas pelo chamador.
type Options struct {
	State          string // UF, padrão "BA"
	StartingNumber int    // >= 1, padrão 1
	Acumulador     string // usado apenas pelo TXT Domínio
}

// WithDefaults preenche os padrões das opções ausentes.
func (o Options) WithDefaults() Options {
	if o.State == "" {
		o.State = "BA"
	}
	if o.StartingNumber < 1 {
		o.StartingNumber = 1
	}
	if o.Acumulador == "" {
		o.Acumulador = "1"
	}
	return o
}

// --- Formato de saída ---

// OutputFormat é o conjunto fechado de geradores de lote.
type OutputFormat int

const (
	FormatServico    OutputFormat = iota // NFS-e municipal (XML)
	FormatSaida                          // NF-e 4.00 saídas (XML)
	FormatDominioTxt                     // TXT Domínio 33 colunas
	FormatCSV
)

var formatNames = map[OutputFormat]string{
	FormatServico:    "servico",
	FormatSaida:      "saida",
	FormatDominioTxt: "dominio_txt",
	FormatCSV:        "csv",
}

// String devolve o nome de transporte do formato.
func (f OutputFormat) String() string {
	return formatNames[f]
}

// ParseOutputFormat resolve o nome do formato; nome desconhecido é erro fatal
// antes de qualquer processamento.
func ParseOutputFormat(name string) (OutputFormat, error) {
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("formato de saída desconhecido: %q", name)
}

// ConversionRequest agrupa tudo que o pipeline precisa para um lote.
type ConversionRequest struct {
	Format   OutputFormat
	BatchID  string
	Provider ProviderInfo
	Options  Options
}

// ConversionResult é o documento gerado mais a extensão do arquivo.
type ConversionResult struct {
	Content     []byte
	Extension   string
	RecordCount int
}
