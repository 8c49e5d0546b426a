package generator

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fiscal-converter-service/internal/core/ibge"
	"fiscal-converter-service/internal/domain"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// nfseGenerator monta o XML de resposta de consulta NFS-e (padrão ABRASF)
// aceito pelo importador municipal. A saída é ISO-8859-1.
type nfseGenerator struct{}

// nfseUTCOffset é o fuso de Salvador, fixo em todo o documento.
const nfseUTCOffset = "-03:00"

type consultarNfseResposta struct {
	XMLName   xml.Name  `xml:"ConsultarNfseResposta"`
	XmlnsXsd  string    `xml:"xmlns:xsd,attr"`
	XmlnsXsi  string    `xml:"xmlns:xsi,attr"`
	Xmlns     string    `xml:"xmlns,attr"`
	ListaNfse listaNfse `xml:"ListaNfse"`
}

type listaNfse struct {
	CompNfse []compNfse `xml:"CompNfse"`
}

type compNfse struct {
	Nfse nfseEnvelope `xml:"Nfse"`
}

type nfseEnvelope struct {
	InfNfse infNfse `xml:"InfNfse"`
}

type infNfse struct {
	Numero                 int                 `xml:"Numero"`
	CodigoVerificacao      string              `xml:"CodigoVerificacao"`
	DataEmissao            string              `xml:"DataEmissao"`
	IdentificacaoRps       identificacaoRps    `xml:"IdentificacaoRps"`
	NaturezaOperacao       string              `xml:"NaturezaOperacao"`
	OptanteSimplesNacional string              `xml:"OptanteSimplesNacional"`
	Competencia            string              `xml:"Competencia"`
	NfseSubstituida        string              `xml:"NfseSubstituida"`
	Status                 string              `xml:"Status"`
	OutrasInformacoes      string              `xml:"OutrasInformacoes"`
	Servico                nfseServico         `xml:"Servico"`
	Prestador              nfsePrestador       `xml:"PrestadorServico"`
	Tomador                nfseTomador         `xml:"TomadorServico"`
	OrgaoGerador           nfseOrgaoGerador    `xml:"OrgaoGerador"`
	ConstrucaoCivil        nfseConstrucaoCivil `xml:"ConstrucaoCivil"`
}

type identificacaoRps struct {
	Numero int    `xml:"Numero"`
	Serie  string `xml:"Serie"`
	Tipo   string `xml:"Tipo"`
}

type nfseServico struct {
	Valores                   nfseValores `xml:"Valores"`
	ItemListaServico          string      `xml:"ItemListaServico"`
	CodigoCnae                string      `xml:"CodigoCnae"`
	CodigoTributacaoMunicipio string      `xml:"CodigoTributacaoMunicipio"`
	Discriminacao             string      `xml:"Discriminacao"`
	CodigoMunicipio           string      `xml:"CodigoMunicipio"`
}

type nfseValores struct {
	ValorServicos          string `xml:"ValorServicos"`
	ValorDeducoes          string `xml:"ValorDeducoes"`
	ValorPis               string `xml:"ValorPis"`
	ValorCofins            string `xml:"ValorCofins"`
	ValorInss              string `xml:"ValorInss"`
	ValorIr                string `xml:"ValorIr"`
	ValorCsll              string `xml:"ValorCsll"`
	IssRetido              int    `xml:"IssRetido"`
	ValorIss               string `xml:"ValorIss"`
	OutrasRetencoes        string `xml:"OutrasRetencoes"`
	BaseCalculo            string `xml:"BaseCalculo"`
	Aliquota               string `xml:"Aliquota"`
	ValorLiquidoNfse       string `xml:"ValorLiquidoNfse"`
	DescontoIncondicionado string `xml:"DescontoIncondicionado"`
	DescontoCondicionado   string `xml:"DescontoCondicionado"`
}

type nfsePrestador struct {
	Identificacao identificacaoPrestador `xml:"IdentificacaoPrestador"`
	RazaoSocial   string                 `xml:"RazaoSocial"`
	Endereco      nfseEndereco           `xml:"Endereco"`
	Contato       nfseContato            `xml:"Contato"`
}

type identificacaoPrestador struct {
	Cnpj               string `xml:"Cnpj"`
	InscricaoMunicipal string `xml:"InscricaoMunicipal"`
}

type nfseTomador struct {
	Identificacao identificacaoTomador `xml:"IdentificacaoTomador"`
	RazaoSocial   string               `xml:"RazaoSocial"`
	Endereco      nfseEndereco         `xml:"Endereco"`
	Contato       nfseContato          `xml:"Contato"`
}

type identificacaoTomador struct {
	CpfCnpj            cpfCnpj `xml:"CpfCnpj"`
	InscricaoMunicipal string  `xml:"InscricaoMunicipal,omitempty"`
}

type cpfCnpj struct {
	Cpf  string `xml:"Cpf,omitempty"`
	Cnpj string `xml:"Cnpj,omitempty"`
}

type nfseEndereco struct {
	Endereco        string `xml:"Endereco"`
	Numero          string `xml:"Numero"`
	Complemento     string `xml:"Complemento"`
	Bairro          string `xml:"Bairro"`
	CodigoMunicipio string `xml:"CodigoMunicipio"`
	Uf              string `xml:"Uf"`
	Cep             string `xml:"Cep"`
}

type nfseContato struct {
	Telefone string `xml:"Telefone"`
	Email    string `xml:"Email"`
}

type nfseOrgaoGerador struct {
	CodigoMunicipio string `xml:"CodigoMunicipio"`
	Uf              string `xml:"Uf"`
}

type nfseConstrucaoCivil struct {
	CodigoObra string `xml:"CodigoObra"`
	Art        string `xml:"Art"`
}

var leadingNoiseRegex = regexp.MustCompile(`^[\d.,\s]+`)

func (g *nfseGenerator) Extension() string { return "xml" }

func (g *nfseGenerator) GenerateBatch(rpsList []domain.Rps, batchID string, provider domain.ProviderInfo, opts domain.Options) ([]byte, error) {
	opts = opts.WithDefaults()

	root := consultarNfseResposta{
		XmlnsXsd: "http://www.w3.org/2001/XMLSchema",
		XmlnsXsi: "http://www.w3.org/2001/XMLSchema-instance",
		Xmlns:    "http://www.abrasf.org.br/ABRASF/arquivos/nfse.xsd",
	}
	for _, rps := range rpsList {
		root.ListaNfse.CompNfse = append(root.ListaNfse.CompNfse, compNfse{
			Nfse: nfseEnvelope{InfNfse: g.buildInfNfse(rps, provider)},
		})
	}

	body, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("erro ao montar XML de NFS-e: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(`<?xml version="1.0" encoding="ISO-8859-1"?>` + "\n")
	out.Write(body)
	out.WriteByte('\n')
	return encodeLatin1(out.Bytes())
}

func (g *nfseGenerator) buildInfNfse(rps domain.Rps, provider domain.ProviderInfo) infNfse {
	sv := rps.Servico

	verification := verificationCode(rps.Numero, rps.DataEmissao)
	competencia := firstOfMonth(rps.DataEmissao)

	payerName := strings.ToUpper(stripAccents(rps.Tomador.RazaoSocial))
	payerName = strings.TrimSpace(leadingNoiseRegex.ReplaceAllString(payerName, ""))
	payerName = truncate(payerName, 115)

	endTomador := rps.Tomador.Endereco
	if endTomador.Bairro == "" {
		endTomador.Bairro = "CENTRO"
	}
	if endTomador.XMun == "" {
		endTomador.XMun = "Salvador"
	}

	return infNfse{
		Numero:            rps.Numero,
		CodigoVerificacao: verification,
		DataEmissao:       rps.DataEmissao + "T00:00:00" + nfseUTCOffset,
		IdentificacaoRps: identificacaoRps{
			Numero: rps.Numero,
			Serie:  rps.Serie,
			Tipo:   rps.Tipo,
		},
		NaturezaOperacao:       "1",
		OptanteSimplesNacional: "1",
		Competencia:            competencia + "T00:00:00" + nfseUTCOffset,
		NfseSubstituida:        "0",
		Status:                 "Rascunho",
		OutrasInformacoes:      "IMPORTACAO MANUAL - NAO LANCAR AUTOMATICAMENTE",
		Servico: nfseServico{
			Valores: nfseValores{
				ValorServicos:          formatMoneyComma(sv.ValorServico),
				ValorDeducoes:          formatMoneyComma(sv.ValorDeducoes),
				ValorPis:               formatMoneyComma(sv.ValorPis),
				ValorCofins:            formatMoneyComma(sv.ValorCofins),
				ValorInss:              formatMoneyComma(sv.ValorInss),
				ValorIr:                formatMoneyComma(sv.ValorIr),
				ValorCsll:              formatMoneyComma(sv.ValorCsll),
				IssRetido:              sv.IssRetido,
				ValorIss:               formatMoneyComma(sv.ValorIss),
				OutrasRetencoes:        formatMoneyComma(sv.OutrasRetencoes),
				BaseCalculo:            formatMoneyComma(sv.BaseCalculo),
				Aliquota:               formatMoneyComma(sv.Aliquota),
				ValorLiquidoNfse:       formatMoneyComma(sv.ValorLiquidoNfse),
				DescontoIncondicionado: formatMoneyComma(sv.DescontoIncondicionado),
				DescontoCondicionado:   formatMoneyComma(sv.DescontoCondicionado),
			},
			ItemListaServico:          sv.ItemListaServico,
			CodigoCnae:                sv.CodigoCnae,
			CodigoTributacaoMunicipio: sv.CodigoTributacaoMunicipio,
			Discriminacao:             stripAccents(sv.Discriminacao),
			CodigoMunicipio:           sv.CodigoMunicipio,
		},
		Prestador: nfsePrestador{
			Identificacao: identificacaoPrestador{
				Cnpj:               digitsOf(provider.Cnpj),
				InscricaoMunicipal: digitsOf(provider.InscricaoMunicipal),
			},
			RazaoSocial: stripAccents(provider.RazaoSocial),
			Endereco: nfseEndereco{
				Endereco:        stripAccents(provider.Endereco),
				Bairro:          stripAccents(provider.Bairro),
				CodigoMunicipio: ibge.SalvadorCode,
				Uf:              fallback(provider.UF, "BA"),
				Cep:             digitsOf(provider.CEP),
			},
			Contato: nfseContato{Telefone: digitsOf(provider.Fone)},
		},
		Tomador: nfseTomador{
			Identificacao: identificacaoTomador{
				CpfCnpj:            splitCpfCnpj(rps.Tomador.CpfCnpj),
				InscricaoMunicipal: rps.Tomador.InscricaoMunicipal,
			},
			RazaoSocial: payerName,
			Endereco: nfseEndereco{
				Endereco:        stripAccents(endTomador.Logradouro),
				Numero:          endTomador.Numero,
				Complemento:     stripAccents(endTomador.Complemento),
				Bairro:          stripAccents(endTomador.Bairro),
				CodigoMunicipio: endTomador.CodigoMunicipio,
				Uf:              endTomador.UF,
				Cep:             endTomador.CEP,
			},
		},
		OrgaoGerador: nfseOrgaoGerador{
			CodigoMunicipio: ibge.SalvadorCode,
			Uf:              "BA",
		},
	}
}

// verificationCode deriva o código de verificação de 8 caracteres do par
// número + data de emissão, determinístico por registro.
func verificationCode(numero int, dataEmissao string) string {
	sum := md5.Sum([]byte(strconv.Itoa(numero) + dataEmissao))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:8]
}

// firstOfMonth ancora a competência no dia 1 do mês de emissão.
func firstOfMonth(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// splitCpfCnpj escolhe a tag pelo comprimento: 11 dígitos é CPF, o resto CNPJ.
func splitCpfCnpj(digits string) cpfCnpj {
	if len(digits) == 11 {
		return cpfCnpj{Cpf: digits}
	}
	return cpfCnpj{Cnpj: digits}
}

// encodeLatin1 transcodifica o documento para ISO-8859-1, substituindo o que
// não couber no charset.
func encodeLatin1(utf8Bytes []byte) ([]byte, error) {
	enc := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	out, err := enc.Bytes(utf8Bytes)
	if err != nil {
		return nil, fmt.Errorf("erro ao codificar XML em ISO-8859-1: %w", err)
	}
	return out, nil
}
