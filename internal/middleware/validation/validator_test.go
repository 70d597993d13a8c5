package validation

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryRequest struct {
	Query string `json:"query" validate:"querytext"`
	TopK  int    `json:"top_k" validate:"omitempty,min=1,max=50"`
}

func newApp(v *Validator) *fiber.App {
	app := fiber.New()
	app.Use(v.Middleware())
	app.Post("/query", func(c *fiber.Ctx) error {
		var req queryRequest
		if err := v.Bind(c, &req); err != nil {
			return v.Reject(c, err)
		}
		return c.JSON(fiber.Map{"query": SanitizeString(req.Query)})
	})
	return app
}

func TestBind(t *testing.T) {
	app := newApp(New(Config{MaxQueryLength: 20}))

	tests := []struct {
		name        string
		body        string
		contentType string
		status      int
		field       string
	}{
		{"valid", `{"query":"  iso 27001  "}`, "application/json", fiber.StatusOK, ""},
		{"blank query", `{"query":"   "}`, "application/json", fiber.StatusBadRequest, "query"},
		{"too long", `{"query":"` + strings.Repeat("a", 21) + `"}`, "application/json", fiber.StatusBadRequest, "query"},
		{"script", `{"query":"<script>alert(1)</script>"}`, "application/json", fiber.StatusBadRequest, "query"},
		{"top_k out of range", `{"query":"iso","top_k":99}`, "application/json", fiber.StatusBadRequest, "top_k"},
		{"malformed", `{"query":`, "application/json", fiber.StatusBadRequest, ""},
		{"wrong content type", `query=iso`, "application/x-www-form-urlencoded", fiber.StatusUnsupportedMediaType, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/query", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.status == fiber.StatusOK {
				assert.Equal(t, "iso 27001", body["query"])
			}
			if tt.field != "" {
				fields, ok := body["fields"].([]any)
				require.True(t, ok)
				require.Len(t, fields, 1)
				assert.Equal(t, tt.field, fields[0].(map[string]any)["field"])
			}
		})
	}
}

func TestStructErrorMessage(t *testing.T) {
	v := New(Config{})
	err := v.Struct(&queryRequest{Query: ""})
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "validation failed: query:querytext", verr.Error())
}

func TestQueryBound(t *testing.T) {
	type optionalQuery struct {
		Query string `json:"query" validate:"querybound"`
	}

	var v *Validator
	require.NotPanics(t, func() { v = New(Config{MaxQueryLength: 10}) })

	assert.NoError(t, v.Struct(&optionalQuery{}))
	assert.NoError(t, v.Struct(&optionalQuery{Query: "   "}))
	assert.NoError(t, v.Struct(&optionalQuery{Query: "iso 27001"}))

	var verr *Error
	require.ErrorAs(t, v.Struct(&optionalQuery{Query: strings.Repeat("a", 11)}), &verr)
	assert.Equal(t, "querybound", verr.Fields[0].Rule)
	require.ErrorAs(t, v.Struct(&optionalQuery{Query: "javascript:x"}), &verr)
	assert.Equal(t, "query", verr.Fields[0].Field)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  a\x00bc \n"))
}
