package cnpj

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"
)

var nonDigitRegex = regexp.MustCompile(`\D`)

// Normalize descarta tudo que não for dígito.
func Normalize(raw string) string {
	return nonDigitRegex.ReplaceAllString(raw, "")
}

// IsValid confere os dois dígitos verificadores do CNPJ. Sequências de um
// dígito só ("11111111111111") são inválidas por definição.
func IsValid(raw string) bool {
	digits := Normalize(raw)
	if len(digits) != 14 {
		return false
	}

	same := true
	for i := 1; i < 14; i++ {
		if digits[i] != digits[0] {
			same = false
			break
		}
	}
	if same {
		return false
	}

	if checkDigit(digits[:12]) != int(digits[12]-'0') {
		return false
	}
	return checkDigit(digits[:13]) == int(digits[13]-'0')
}

// checkDigit calcula um dígito verificador: pesos 2..9 a partir da direita.
func checkDigit(digits string) int {
	sum := 0
	weight := 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

// CompanyInfo é o recorte da resposta da ReceitaWS que interessa ao
// preenchimento dos dados do prestador.
type CompanyInfo struct {
	Cnpj        string `json:"cnpj"`
	RazaoSocial string `json:"nome"`
	Fantasia    string `json:"fantasia"`
	Logradouro  string `json:"logradouro"`
	Numero      string `json:"numero"`
	Complemento string `json:"complemento"`
	Bairro      string `json:"bairro"`
	Municipio   string `json:"municipio"`
	UF          string `json:"uf"`
	CEP         string `json:"cep"`
	Telefone    string `json:"telefone"`
	Situacao    string `json:"situacao"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

const receitaWSBase = "https://receitaws.com.br/v1/cnpj/"

// Client consulta dados cadastrais de CNPJ na ReceitaWS.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    receitaWSBase,
	}
}

// NewClientWithBase existe para os testes apontarem o cliente para um
// servidor local.
func NewClientWithBase(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// Lookup busca os dados cadastrais do CNPJ. O número é validado localmente
// antes de gastar a cota da API.
func (c *Client) Lookup(ctx context.Context, raw string) (*CompanyInfo, error) {
	digits := Normalize(raw)
	if !IsValid(digits) {
		return nil, fmt.Errorf("CNPJ inválido: %q", raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+digits, nil)
	if err != nil {
		return nil, fmt.Errorf("erro ao montar requisição: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erro ao consultar ReceitaWS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("limite de consultas da ReceitaWS atingido, tente novamente em instantes")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ReceitaWS respondeu status %d", resp.StatusCode)
	}

	var info CompanyInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("erro ao ler resposta da ReceitaWS: %w", err)
	}
	if info.Status == "ERROR" {
		return nil, fmt.Errorf("ReceitaWS: %s", info.Message)
	}
	return &info, nil
}
