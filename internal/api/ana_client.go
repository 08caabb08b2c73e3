package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cotas/internal/metrics"
	"cotas/internal/models"
)

const (
	DefaultBaseURL = "https://telemetriaws1.ana.gov.br/ServiceANA.asmx"

	inventoryPath    = "HidroInventario"
	measurementsPath = "DadosHidrometeorologicos"

	// element names of the repeated rows in each response
	inventoryRowElement   = "Table"
	measurementRowElement = "DadosHidrometereologicos"
)

// ErrStationNotFound is returned when the inventory has no usable row for a code
var ErrStationNotFound = errors.New("station not found in inventory")

// ANAClient is a client for the ANA telemetry web service (ServiceANA.asmx)
type ANAClient struct {
	baseURL      string
	userAgent    string
	inventory    *http.Client
	measurements *http.Client
}

type ClientParams struct {
	BaseURL             string
	UserAgent           string
	InventoryTimeout    time.Duration // metadata lookups are small
	MeasurementsTimeout time.Duration // a week of readings is not
}

// NewANAClient creates a new ANA web service client
func NewANAClient(params ClientParams) *ANAClient {
	if params.BaseURL == "" {
		params.BaseURL = DefaultBaseURL
	}
	if params.InventoryTimeout <= 0 {
		params.InventoryTimeout = 30 * time.Second
	}
	if params.MeasurementsTimeout <= 0 {
		params.MeasurementsTimeout = 60 * time.Second
	}

	return &ANAClient{
		baseURL:      strings.TrimRight(params.BaseURL, "/"),
		userAgent:    params.UserAgent,
		inventory:    &http.Client{Timeout: params.InventoryTimeout},
		measurements: &http.Client{Timeout: params.MeasurementsTimeout},
	}
}

// BuildInventoryURL builds the HidroInventario URL filtering on a single code.
// The service expects every filter parameter to be present, even when empty.
func (c *ANAClient) BuildInventoryURL(code string) string {
	code = url.QueryEscape(code)
	return fmt.Sprintf("%s/%s?codEstDE=%s&codEstATE=%s&tpEst=&nmEst=&nmRio=&codSubBacia=&codBacia=&nmMunicipio=&nmEstado=&sgResp=&sgOper=&telemetrica=",
		c.baseURL, inventoryPath, code, code)
}

// BuildMeasurementsURL builds the DadosHidrometeorologicos URL for a code and window
func (c *ANAClient) BuildMeasurementsURL(code string, window models.Window) string {
	return fmt.Sprintf("%s/%s?codEstacao=%s&dataInicio=%s&dataFim=%s",
		c.baseURL, measurementsPath, url.QueryEscape(code), window.StartParam(), window.EndParam())
}

// Inventory fetches the inventory rows for a station code
func (c *ANAClient) Inventory(ctx context.Context, code string) ([]models.InventoryRow, error) {
	body, err := c.get(ctx, c.inventory, "inventory", c.BuildInventoryURL(code))
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows[models.InventoryRow](body, inventoryRowElement)
	if err != nil {
		return nil, fmt.Errorf("failed to decode inventory: %w", err)
	}
	return rows, nil
}

// StationName returns the display name of the first inventory row that has one
func (c *ANAClient) StationName(ctx context.Context, code string) (string, error) {
	rows, err := c.Inventory(ctx, code)
	if err != nil {
		return "", err
	}

	for _, row := range rows {
		if name := strings.TrimSpace(row.Name); name != "" {
			return name, nil
		}
	}
	return "", fmt.Errorf("%s: %w", code, ErrStationNotFound)
}

// Measurements fetches the raw telemetry rows of a station within window
func (c *ANAClient) Measurements(ctx context.Context, code string, window models.Window) ([]models.MeasurementRow, error) {
	body, err := c.get(ctx, c.measurements, "measurements", c.BuildMeasurementsURL(code, window))
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows[models.MeasurementRow](body, measurementRowElement)
	if err != nil {
		return nil, fmt.Errorf("failed to decode measurements: %w", err)
	}
	return rows, nil
}

func (c *ANAClient) get(ctx context.Context, client *http.Client, endpoint, rawURL string) (body []byte, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordAPIRequest(endpoint, time.Since(start), err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
