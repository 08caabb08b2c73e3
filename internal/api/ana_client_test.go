package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cotas/internal/models"
)

const inventoryXML = `<?xml version="1.0" encoding="utf-8"?>
<DataTable xmlns="http://MRCS/">
  <xs:schema id="NewDataSet" xmlns:xs="http://www.w3.org/2001/XMLSchema"></xs:schema>
  <diffgr:diffgram xmlns:msdata="urn:schemas-microsoft-com:xml-msdata" xmlns:diffgr="urn:schemas-microsoft-com:xml-diffgram-v1">
    <Estacoes xmlns="">
      <Table diffgr:id="Table1" msdata:rowOrder="0">
        <Codigo>60474000</Codigo>
        <Nome>UHE ITUMBIARA JUSANTE</Nome>
        <RioNome>RIO PARANAÍBA</RioNome>
        <nmEstado>GOIÁS</nmEstado>
        <nmMunicipio>ITUMBIARA</nmMunicipio>
        <Latitude>-18.4097</Latitude>
        <Longitude>-49.1069</Longitude>
      </Table>
    </Estacoes>
  </diffgr:diffgram>
</DataTable>`

const emptyInventoryXML = `<?xml version="1.0" encoding="utf-8"?>
<DataTable xmlns="http://MRCS/">
  <diffgr:diffgram xmlns:diffgr="urn:schemas-microsoft-com:xml-diffgram-v1"></diffgr:diffgram>
</DataTable>`

const measurementsXML = `<?xml version="1.0" encoding="utf-8"?>
<DataTable xmlns="http://MRCS/">
  <diffgr:diffgram xmlns:diffgr="urn:schemas-microsoft-com:xml-diffgram-v1">
    <DocumentElement xmlns="">
      <DadosHidrometereologicos diffgr:id="DadosHidrometereologicos1">
        <CodEstacao>60474000</CodEstacao>
        <DataHora>2024-05-02 10:00:00</DataHora>
        <Vazao />
        <Nivel>152.00</Nivel>
        <Chuva>0.00</Chuva>
      </DadosHidrometereologicos>
      <DadosHidrometereologicos diffgr:id="DadosHidrometereologicos2">
        <CodEstacao>60474000</CodEstacao>
        <DataHora>2024-05-02 09:45:00</DataHora>
        <Vazao />
        <Nivel />
        <Chuva>0.00</Chuva>
      </DadosHidrometereologicos>
    </DocumentElement>
  </diffgr:diffgram>
</DataTable>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *ANAClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewANAClient(ClientParams{
		BaseURL:             srv.URL + "/ServiceANA.asmx",
		UserAgent:           "cotas-test",
		InventoryTimeout:    time.Second,
		MeasurementsTimeout: time.Second,
	})
}

func TestNewANAClient_Defaults(t *testing.T) {
	client := NewANAClient(ClientParams{})
	if client == nil {
		t.Fatal("NewANAClient() returned nil")
	}

	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %s, want %s", client.baseURL, DefaultBaseURL)
	}
	if client.inventory.Timeout != 30*time.Second {
		t.Errorf("inventory timeout = %v, want 30s", client.inventory.Timeout)
	}
	if client.measurements.Timeout != 60*time.Second {
		t.Errorf("measurements timeout = %v, want 60s", client.measurements.Timeout)
	}
}

func TestBuildInventoryURL(t *testing.T) {
	client := NewANAClient(ClientParams{BaseURL: "https://telemetriaws1.ana.gov.br/ServiceANA.asmx/"})

	want := "https://telemetriaws1.ana.gov.br/ServiceANA.asmx/HidroInventario?codEstDE=60474000&codEstATE=60474000&tpEst=&nmEst=&nmRio=&codSubBacia=&codBacia=&nmMunicipio=&nmEstado=&sgResp=&sgOper=&telemetrica="
	if got := client.BuildInventoryURL("60474000"); got != want {
		t.Errorf("BuildInventoryURL() = %v, want %v", got, want)
	}
}

func TestBuildMeasurementsURL(t *testing.T) {
	client := NewANAClient(ClientParams{})

	tests := []struct {
		name   string
		code   string
		window models.Window
		want   string
	}{
		{
			name: "week window",
			code: "60474000",
			window: models.Window{
				Start: time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
			},
			want: "https://telemetriaws1.ana.gov.br/ServiceANA.asmx/DadosHidrometeorologicos?codEstacao=60474000&dataInicio=25-04-2024&dataFim=03-05-2024",
		},
		{
			name: "leading zeros kept",
			code: "00123456",
			window: models.Window{
				Start: time.Date(2023, 12, 28, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			},
			want: "https://telemetriaws1.ana.gov.br/ServiceANA.asmx/DadosHidrometeorologicos?codEstacao=00123456&dataInicio=28-12-2023&dataFim=05-01-2024",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.BuildMeasurementsURL(tt.code, tt.window); got != tt.want {
				t.Errorf("BuildMeasurementsURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStationName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/HidroInventario") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("codEstDE") != "60474000" || r.URL.Query().Get("codEstATE") != "60474000" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") != "cotas-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.Write([]byte(inventoryXML))
	})

	name, err := client.StationName(context.Background(), "60474000")
	if err != nil {
		t.Fatalf("StationName() error = %v", err)
	}
	if name != "UHE ITUMBIARA JUSANTE" {
		t.Errorf("StationName() = %q, want %q", name, "UHE ITUMBIARA JUSANTE")
	}
}

func TestStationName_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyInventoryXML))
	})

	_, err := client.StationName(context.Background(), "99999999")
	if !errors.Is(err, ErrStationNotFound) {
		t.Errorf("StationName() error = %v, want ErrStationNotFound", err)
	}
}

func TestStationName_MalformedXML(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<DataTable><Table><Nome>broken</Table>`))
	})

	_, err := client.StationName(context.Background(), "60474000")
	if err == nil {
		t.Fatal("StationName() expected error for malformed XML, got nil")
	}
	if errors.Is(err, ErrStationNotFound) {
		t.Errorf("malformed XML should not be reported as not found: %v", err)
	}
}

func TestMeasurements(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("codEstacao") != "60474000" || q.Get("dataInicio") != "25-04-2024" || q.Get("dataFim") != "03-05-2024" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(measurementsXML))
	})

	window := models.Window{
		Start: time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
	}
	rows, err := client.Measurements(context.Background(), "60474000", window)
	if err != nil {
		t.Fatalf("Measurements() error = %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].DateTime != "2024-05-02 10:00:00" || rows[0].Level != "152.00" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Level != "" {
		t.Errorf("empty <Nivel /> should decode to an empty string, got %q", rows[1].Level)
	}
}

func TestMeasurements_StatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "System.InvalidOperationException", http.StatusInternalServerError)
	})

	_, err := client.Measurements(context.Background(), "60474000", models.Window{})
	if err == nil {
		t.Fatal("Measurements() expected error for status 500, got nil")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("error should mention the status, got %v", err)
	}
}

func TestMeasurements_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewANAClient(ClientParams{
		BaseURL:             srv.URL,
		InventoryTimeout:    50 * time.Millisecond,
		MeasurementsTimeout: 50 * time.Millisecond,
	})

	_, err := client.Measurements(context.Background(), "60474000", models.Window{})
	if err == nil {
		t.Fatal("Measurements() expected timeout error, got nil")
	}
}

func TestDecodeRows(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantRows int
		wantErr  bool
	}{
		{name: "nested rows", input: measurementsXML, wantRows: 2},
		{name: "no rows", input: emptyInventoryXML, wantRows: 0},
		{name: "not xml", input: "Service unavailable", wantErr: true},
		{name: "empty body", input: "", wantErr: true},
		{name: "truncated", input: "<DataTable><DadosHidrometereologicos><Nivel>1</Nivel>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := decodeRows[models.MeasurementRow]([]byte(tt.input), measurementRowElement)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeRows() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(rows) != tt.wantRows {
				t.Errorf("decodeRows() rows = %d, want %d", len(rows), tt.wantRows)
			}
		})
	}
}
