package http_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ttanlocc/VMPharmacy-sub000/internal/catalog"
	posHttp "github.com/ttanlocc/VMPharmacy-sub000/internal/handler/http"
)

func TestTemplateHandler_GetTemplate(t *testing.T) {
	ts := newTestServer(t)
	templateID := uuid.Must(uuid.NewV4())
	drugID := uuid.Must(uuid.NewV4())

	expansion := &catalog.Expansion{
		Template: &catalog.Template{
			ID:         templateID,
			Name:       "Cold combo",
			TotalPrice: decimal.NewNullDecimal(decimal.NewFromInt(45000)),
		},
		Components: []catalog.Component{
			{DrugID: drugID, Name: "Paracetamol", Unit: "tablet", Quantity: 10, StandardPrice: decimal.NewFromInt(5000)},
		},
	}
	ts.templates.On("Expand", mock.Anything, templateID).Return(expansion, nil).Once()

	rr := ts.do(t, http.MethodGet, "/templates/"+templateID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var actualResponse posHttp.TemplateResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&actualResponse))
	assert.Equal(t, templateID, actualResponse.ID)
	assert.True(t, actualResponse.HasManualPrice)
	assert.Equal(t, "45000", actualResponse.Price.String())
	assert.Equal(t, "50000", actualResponse.StandardTotal.String())
	require.Len(t, actualResponse.Items, 1)
	assert.Equal(t, drugID, actualResponse.Items[0].DrugID)
}

func TestTemplateHandler_GetTemplate_NotFound(t *testing.T) {
	ts := newTestServer(t)
	templateID := uuid.Must(uuid.NewV4())
	ts.templates.On("Expand", mock.Anything, templateID).Return(nil, catalog.ErrTemplateNotFound).Once()

	rr := ts.do(t, http.MethodGet, "/templates/"+templateID.String(), nil)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "template not found", decodeError(t, rr))
}
