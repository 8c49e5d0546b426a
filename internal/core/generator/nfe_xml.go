package generator

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"fiscal-converter-service/internal/domain"
	"fiscal-converter-service/internal/core/ibge"
)

// nfeGenerator monta um documento de saída no layout NF-e 4.00 (mercadoria,
// não serviço): o importador contábil só aceita esse esquema, então o lote de
// aluguéis é vestido de nota de saída com tributação zerada de ICMS.
type nfeGenerator struct{}

const nfeWarning = "DOCUMENTO GERADO PARA IMPORTACAO MANUAL - NAO POSSUI VALOR FISCAL"

type nfeProc struct {
	XMLName xml.Name `xml:"nfeProc"`
	Xmlns   string   `xml:"xmlns,attr"`
	Versao  string   `xml:"versao,attr"`
	NFe     []nfeDoc `xml:"NFe"`
}

type nfeDoc struct {
	InfNFe infNFe `xml:"infNFe"`
}

type infNFe struct {
	Id      string  `xml:"Id,attr"`
	Versao  string  `xml:"versao,attr"`
	Ide     nfeIde  `xml:"ide"`
	Emit    nfeEmit `xml:"emit"`
	Dest    nfeDest `xml:"dest"`
	Det     nfeDet  `xml:"det"`
	Total   nfeTotal `xml:"total"`
	Transp  nfeTransp `xml:"transp"`
	InfAdic nfeInfAdic `xml:"infAdic"`
}

type nfeIde struct {
	CUF      string `xml:"cUF"`
	CNF      string `xml:"cNF"`
	NatOp    string `xml:"natOp"`
	Mod      string `xml:"mod"`
	Serie    string `xml:"serie"`
	NNF      int    `xml:"nNF"`
	DhEmi    string `xml:"dhEmi"`
	TpNF     string `xml:"tpNF"`
	IdDest   string `xml:"idDest"`
	CMunFG   string `xml:"cMunFG"`
	TpImp    string `xml:"tpImp"`
	TpEmis   string `xml:"tpEmis"`
	CDV      string `xml:"cDV"`
	TpAmb    string `xml:"tpAmb"`
	FinNFe   string `xml:"finNFe"`
	IndFinal string `xml:"indFinal"`
	IndPres  string `xml:"indPres"`
	ProcEmi  string `xml:"procEmi"`
	VerProc  string `xml:"verProc"`
}

type nfeEmit struct {
	CNPJ  string      `xml:"CNPJ"`
	XNome string      `xml:"xNome"`
	Ender nfeEndereco `xml:"enderEmit"`
	IE    string      `xml:"IE"`
	CRT   string      `xml:"CRT"`
}

type nfeDest struct {
	CPF       string      `xml:"CPF,omitempty"`
	CNPJ      string      `xml:"CNPJ,omitempty"`
	XNome     string      `xml:"xNome"`
	Ender     nfeEndereco `xml:"enderDest"`
	IndIEDest string      `xml:"indIEDest"`
}

type nfeEndereco struct {
	XLgr    string `xml:"xLgr"`
	Nro     string `xml:"nro"`
	XBairro string `xml:"xBairro"`
	CMun    string `xml:"cMun"`
	XMun    string `xml:"xMun"`
	UF      string `xml:"UF"`
	CEP     string `xml:"CEP"`
	CPais   string `xml:"cPais"`
	XPais   string `xml:"xPais"`
	Fone    string `xml:"fone,omitempty"`
}

type nfeDet struct {
	NItem   string     `xml:"nItem,attr"`
	Prod    nfeProd    `xml:"prod"`
	Imposto nfeImposto `xml:"imposto"`
}

type nfeProd struct {
	CProd    string `xml:"cProd"`
	CEAN     string `xml:"cEAN"`
	XProd    string `xml:"xProd"`
	NCM      string `xml:"NCM"`
	CFOP     string `xml:"CFOP"`
	UCom     string `xml:"uCom"`
	QCom     string `xml:"qCom"`
	VUnCom   string `xml:"vUnCom"`
	VProd    string `xml:"vProd"`
	CEANTrib string `xml:"cEANTrib"`
	UTrib    string `xml:"uTrib"`
	QTrib    string `xml:"qTrib"`
	VUnTrib  string `xml:"vUnTrib"`
	IndTot   string `xml:"indTot"`
}

type nfeImposto struct {
	ICMS   nfeICMS   `xml:"ICMS"`
	PIS    nfePIS    `xml:"PIS"`
	COFINS nfeCOFINS `xml:"COFINS"`
}

type nfeICMS struct {
	ICMSSN102 nfeICMSSN102 `xml:"ICMSSN102"`
}

type nfeICMSSN102 struct {
	Orig  string `xml:"orig"`
	CSOSN string `xml:"CSOSN"`
}

type nfePIS struct {
	PISAliq nfePISAliq `xml:"PISAliq"`
}

type nfeCOFINS struct {
	COFINSAliq nfeCOFINSAliq `xml:"COFINSAliq"`
}

type nfePISAliq struct {
	CST  string `xml:"CST"`
	VBC  string `xml:"vBC"`
	PPIS string `xml:"pPIS"`
	VPIS string `xml:"vPIS"`
}

type nfeCOFINSAliq struct {
	CST     string `xml:"CST"`
	VBC     string `xml:"vBC"`
	PCOFINS string `xml:"pCOFINS"`
	VCOFINS string `xml:"vCOFINS"`
}

type nfeTotal struct {
	ICMSTot nfeICMSTot `xml:"ICMSTot"`
}

type nfeICMSTot struct {
	VBC     string `xml:"vBC"`
	VICMS   string `xml:"vICMS"`
	VProd   string `xml:"vProd"`
	VFrete  string `xml:"vFrete"`
	VSeg    string `xml:"vSeg"`
	VDesc   string `xml:"vDesc"`
	VIPI    string `xml:"vIPI"`
	VPIS    string `xml:"vPIS"`
	VCOFINS string `xml:"vCOFINS"`
	VOutro  string `xml:"vOutro"`
	VNF     string `xml:"vNF"`
}

type nfeTransp struct {
	ModFrete string `xml:"modFrete"`
}

type nfeInfAdic struct {
	InfCpl string `xml:"infCpl"`
}

func (g *nfeGenerator) Extension() string { return "xml" }

func (g *nfeGenerator) GenerateBatch(rpsList []domain.Rps, batchID string, provider domain.ProviderInfo, opts domain.Options) ([]byte, error) {
	opts = opts.WithDefaults()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	root := nfeProc{
		Xmlns:  "http://www.portalfiscal.inf.br/nfe",
		Versao: "4.00",
	}

	nNF := opts.StartingNumber
	for _, rps := range rpsList {
		cNF := fmt.Sprintf("%08d", rng.Intn(100000000))
		key := accessKey(opts.State, rps.DataEmissao, provider.Cnpj, nNF, cNF)
		root.NFe = append(root.NFe, nfeDoc{InfNFe: g.buildInfNFe(rps, key, nNF, cNF, batchID, provider, opts)})
		nNF++
	}

	body, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("erro ao montar XML de NF-e: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(xml.Header)
	out.Write(body)
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func (g *nfeGenerator) buildInfNFe(rps domain.Rps, key string, nNF int, cNF, batchID string, provider domain.ProviderInfo, opts domain.Options) infNFe {
	value := rps.Servico.ValorServico
	cfop := cfopFor(rps.Tomador.Endereco.UF, opts.State)
	idDest := "1"
	if cfop == "6949" {
		idDest = "2"
	}

	dest := nfeDest{
		XNome: truncate(strings.ToUpper(stripAccents(rps.Tomador.RazaoSocial)), 60),
		Ender: destEndereco(rps.Tomador.Endereco),
		IndIEDest: "9",
	}
	if len(rps.Tomador.CpfCnpj) == 11 {
		dest.CPF = rps.Tomador.CpfCnpj
	} else {
		dest.CNPJ = fmt.Sprintf("%014s", rps.Tomador.CpfCnpj)
	}

	vPIS := value * 0.0065
	vCOFINS := value * 0.03

	return infNFe{
		Id:     "NFe" + key,
		Versao: "4.00",
		Ide: nfeIde{
			CUF:      ibge.UFCode(opts.State),
			CNF:      cNF,
			NatOp:    "PRESTACAO DE SERVICO",
			Mod:      "44",
			Serie:    "1",
			NNF:      nNF,
			DhEmi:    rps.DataEmissao + "T12:00:00-03:00",
			TpNF:     "1",
			IdDest:   idDest,
			CMunFG:   rps.Servico.CodigoMunicipio,
			TpImp:    "1",
			TpEmis:   "1",
			CDV:      key[43:],
			TpAmb:    "2",
			FinNFe:   "1",
			IndFinal: "1",
			IndPres:  "9",
			ProcEmi:  "0",
			VerProc:  "1.0",
		},
		Emit: nfeEmit{
			CNPJ:  fmt.Sprintf("%014s", provider.Cnpj),
			XNome: truncate(strings.ToUpper(stripAccents(provider.RazaoSocial)), 60),
			Ender: nfeEndereco{
				XLgr:    fallback(stripAccents(provider.Endereco), "RUA SEM NOME"),
				Nro:     "S/N",
				XBairro: fallback(stripAccents(provider.Bairro), "CENTRO"),
				CMun:    ibge.SalvadorCode,
				XMun:    fallback(provider.Municipio, "Salvador"),
				UF:      opts.State,
				CEP:     fallback(provider.CEP, "40000000"),
				CPais:   "1058",
				XPais:   "BRASIL",
				Fone:    provider.Fone,
			},
			IE:  "ISENTO",
			CRT: "1",
		},
		Dest: dest,
		Det: nfeDet{
			NItem: "1",
			Prod: nfeProd{
				CProd:    "ALUGUEL_01",
				CEAN:     "SEM GTIN",
				XProd:    fallback(strings.ToUpper(stripAccents(rps.Servico.Discriminacao)), "ALUGUEL DE IMOVEL"),
				NCM:      "00",
				CFOP:     cfop,
				UCom:     "UN",
				QCom:     "1.0000",
				VUnCom:   formatMoneyDot(value),
				VProd:    formatMoneyDot(value),
				CEANTrib: "SEM GTIN",
				UTrib:    "UN",
				QTrib:    "1.0000",
				VUnTrib:  formatMoneyDot(value),
				IndTot:   "1",
			},
			Imposto: nfeImposto{
				ICMS: nfeICMS{ICMSSN102: nfeICMSSN102{Orig: "0", CSOSN: "102"}},
				PIS: nfePIS{PISAliq: nfePISAliq{
					CST:  "01",
					VBC:  formatMoneyDot(value),
					PPIS: "0.65",
					VPIS: formatMoneyDot(vPIS),
				}},
				COFINS: nfeCOFINS{COFINSAliq: nfeCOFINSAliq{
					CST:     "01",
					VBC:     formatMoneyDot(value),
					PCOFINS: "3.00",
					VCOFINS: formatMoneyDot(vCOFINS),
				}},
			},
		},
		Total: nfeTotal{ICMSTot: nfeICMSTot{
			VBC:     "0.00",
			VICMS:   "0.00",
			VProd:   formatMoneyDot(value),
			VFrete:  "0.00",
			VSeg:    "0.00",
			VDesc:   "0.00",
			VIPI:    "0.00",
			VPIS:    formatMoneyDot(vPIS),
			VCOFINS: formatMoneyDot(vCOFINS),
			VOutro:  "0.00",
			VNF:     formatMoneyDot(value),
		}},
		Transp:  nfeTransp{ModFrete: "9"},
		InfAdic: nfeInfAdic{InfCpl: nfeWarning + " | REF ID: " + batchID},
	}
}

func destEndereco(end domain.Endereco) nfeEndereco {
	return nfeEndereco{
		XLgr:    fallback(stripAccents(end.Logradouro), "RUA SEM NOME"),
		Nro:     fallback(end.Numero, "S/N"),
		XBairro: fallback(stripAccents(end.Bairro), "CENTRO"),
		CMun:    fallback(end.CodigoMunicipio, ibge.SalvadorCode),
		XMun:    fallback(end.XMun, "Salvador"),
		UF:      end.UF,
		CEP:     fallback(end.CEP, "40000000"),
		CPais:   "1058",
		XPais:   "BRASIL",
	}
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// accessKey monta a chave de acesso de 44 dígitos:
// UF(2) + AAMM(4) + CNPJ(14) + modelo "44" + série "001" + nNF(9) +
// tpEmis "1" + cNF(8) + dígito verificador módulo 11.
func accessKey(uf, isoDate, cnpj string, nNF int, cNF string) string {
	aamm := "0001"
	if t, err := time.Parse("2006-01-02", isoDate); err == nil {
		aamm = t.Format("0601")
	}

	base := ibge.UFCode(uf) +
		aamm +
		fmt.Sprintf("%014s", digitsOf(cnpj)) +
		"44" +
		"001" +
		fmt.Sprintf("%09d", nNF) +
		"1" +
		fmt.Sprintf("%08s", cNF)

	return base + strconv.Itoa(Mod11CheckDigit(base))
}

// Mod11CheckDigit calcula o dígito verificador módulo 11 da chave: pesos de
// 2 a 9 a partir do dígito mais à direita, reiniciando em 2; resto 0 ou 1
// resulta em dígito 0.
func Mod11CheckDigit(digits string) int {
	sum := 0
	weight := 2
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		sum += d * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	rest := sum % 11
	if rest == 0 || rest == 1 {
		return 0
	}
	return 11 - rest
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
