package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fiscal-converter-service/internal/api/responses"
	"fiscal-converter-service/internal/core/cnpj"
	"fiscal-converter-service/internal/core/converter"
	"fiscal-converter-service/internal/domain"

	"github.com/gin-gonic/gin"
)

// ConverterHandler lida com as requisições da API de conversão de documentos
// fiscais.
type ConverterHandler struct {
	service    converter.Service
	cnpjClient *cnpj.Client
}

// NewConverterHandler cria um novo handler de conversão.
func NewConverterHandler(service converter.Service, cnpjClient *cnpj.Client) *ConverterHandler {
	return &ConverterHandler{
		service:    service,
		cnpjClient: cnpjClient,
	}
}

var allowedExtensions = map[string]bool{
	".csv":  true,
	".xls":  true,
	".xlsx": true,
	".pdf":  true,
}

func checkExtension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("extensão de arquivo não suportada: %s", ext)
	}
	return ext, nil
}

// optionsFromForm monta as opções de conversão a partir do formulário.
func optionsFromForm(c *gin.Context) domain.Options {
	opts := domain.Options{
		State:      strings.ToUpper(strings.TrimSpace(c.PostForm("uf"))),
		Acumulador: strings.TrimSpace(c.PostForm("acumulador")),
	}
	if n, err := strconv.Atoi(c.PostForm("numeroInicial")); err == nil && n > 0 {
		opts.StartingNumber = n
	}
	return opts.WithDefaults()
}

// providerFromForm monta os dados do prestador enviados junto com o arquivo.
func providerFromForm(c *gin.Context) domain.ProviderInfo {
	return domain.ProviderInfo{
		Cnpj:               strings.TrimSpace(c.PostForm("prestadorCnpj")),
		RazaoSocial:        strings.TrimSpace(c.PostForm("prestadorRazaoSocial")),
		InscricaoMunicipal: strings.TrimSpace(c.PostForm("prestadorInscricaoMunicipal")),
		Endereco:           strings.TrimSpace(c.PostForm("prestadorEndereco")),
		Bairro:             strings.TrimSpace(c.PostForm("prestadorBairro")),
		Municipio:          strings.TrimSpace(c.PostForm("prestadorMunicipio")),
		UF:                 strings.ToUpper(strings.TrimSpace(c.PostForm("prestadorUf"))),
		CEP:                strings.TrimSpace(c.PostForm("prestadorCep")),
		Fone:               strings.TrimSpace(c.PostForm("prestadorFone")),
	}
}

// HandleConvert recebe o arquivo de origem e devolve o documento gerado no
// formato pedido como download.
func (h *ConverterHandler) HandleConvert(c *gin.Context) {
	fileHeader, err := c.FormFile("arquivo")
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Arquivo de origem (.csv, .xls, .xlsx, .pdf) não encontrado ou inválido")
		return
	}

	if _, err := checkExtension(fileHeader.Filename); err != nil {
		responses.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	format, err := domain.ParseOutputFormat(c.PostForm("formato"))
	if err != nil {
		responses.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Não foi possível abrir o arquivo de origem")
		return
	}
	defer file.Close()

	req := domain.ConversionRequest{
		Format:   format,
		BatchID:  strings.TrimSpace(c.PostForm("lote")),
		Provider: providerFromForm(c),
		Options:  optionsFromForm(c),
	}

	result, err := h.service.Convert(file, fileHeader.Filename, req)
	if err != nil {
		responses.Error(c, http.StatusUnprocessableEntity, "Erro ao converter o arquivo", err.Error())
		return
	}

	fileName := fmt.Sprintf("Conversao_%s_%s.%s", format, time.Now().Format("20060102_150405"), result.Extension)
	responses.Download(c, fileName, contentTypeFor(format), result.Content)
}

// HandleValidate roda a validação estrita sem gerar nada.
func (h *ConverterHandler) HandleValidate(c *gin.Context) {
	fileHeader, err := c.FormFile("arquivo")
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Arquivo de origem (.csv, .xls, .xlsx, .pdf) não encontrado ou inválido")
		return
	}
	if _, err := checkExtension(fileHeader.Filename); err != nil {
		responses.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Não foi possível abrir o arquivo de origem")
		return
	}
	defer file.Close()

	report, err := h.service.ValidateFile(file, fileHeader.Filename)
	if err != nil {
		responses.Error(c, http.StatusUnprocessableEntity, "Erro ao validar o arquivo", err.Error())
		return
	}

	message := "Arquivo válido"
	if !report.Valid {
		message = "Arquivo contém erros"
	}
	responses.Success(c, report, message)
}

// HandleHeaders devolve os cabeçalhos detectados no arquivo enviado.
func (h *ConverterHandler) HandleHeaders(c *gin.Context) {
	fileHeader, err := c.FormFile("arquivo")
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Arquivo de origem (.csv, .xls, .xlsx, .pdf) não encontrado ou inválido")
		return
	}
	if _, err := checkExtension(fileHeader.Filename); err != nil {
		responses.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Não foi possível abrir o arquivo de origem")
		return
	}
	defer file.Close()

	headers, err := h.service.ExtractHeaders(file, fileHeader.Filename)
	if err != nil {
		responses.Error(c, http.StatusUnprocessableEntity, "Erro ao ler o arquivo", err.Error())
		return
	}
	responses.Success(c, gin.H{"cabecalhos": headers}, "Cabeçalhos extraídos")
}

// HandleCnpjLookup consulta os dados cadastrais de um CNPJ para preencher o
// prestador automaticamente.
func (h *ConverterHandler) HandleCnpjLookup(c *gin.Context) {
	raw := c.Param("cnpj")
	info, err := h.cnpjClient.Lookup(c.Request.Context(), raw)
	if err != nil {
		responses.Error(c, http.StatusBadGateway, "Não foi possível consultar o CNPJ", err.Error())
		return
	}
	responses.Success(c, info, "CNPJ consultado")
}

func contentTypeFor(format domain.OutputFormat) string {
	switch format {
	case domain.FormatServico:
		// o XML municipal sai em ISO-8859-1
		return "application/xml; charset=iso-8859-1"
	case domain.FormatSaida:
		return "application/xml; charset=utf-8"
	case domain.FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
