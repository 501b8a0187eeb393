package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toure-cloud/institutdeveloppement/core/content"
)

func Test_publicApi_home(t *testing.T) {
	ta := setup(t)

	admin := ta.token(t, ta.createAdmin(t, "admin", false))
	for _, p := range []struct{ name, category string }{
		{"Université FHB", "academique"},
		{"Ministère de l'Enseignement", "institutionnel"},
		{"Orange CI", "prive"},
		{"INP-HB", "academique"},
	} {
		rec := ta.serve(newMultipartRequest(t, http.MethodPost, "/api/admin/partners", admin,
			map[string][]string{"nom": {p.name}, "category": {p.category}},
		))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := ta.serve(newRequest(http.MethodGet, "/api/home"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var home content.Home
	unmarshal(t, rec, &home)
	assert.Len(t, home.Slides, len(content.Slides))
	assert.Empty(t, home.TeamMembers)
	assert.Len(t, home.Partners.Academic, 2)
	assert.Len(t, home.Partners.Institutional, 1)
	assert.Len(t, home.Partners.Private, 1)
}

func Test_publicApi_page(t *testing.T) {
	ta := setup(t)

	candidate, _ := ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	admin := ta.createAdmin(t, "admin", false)

	type presentation struct {
		Year        int              `json:"year"`
		Inscription *json.RawMessage `json:"inscription"`
	}
	decode := func(t *testing.T, raw json.RawMessage) presentation {
		var p presentation
		require.NoError(t, json.Unmarshal(raw, &p))
		return p
	}

	tests := []struct {
		name            string
		page            string
		token           string
		wantCode        int
		wantTitle       string
		wantInscription bool
	}{
		{name: "unknown", page: "lol", wantCode: http.StatusNotFound},
		{name: "contact", page: "contact", wantCode: http.StatusOK, wantTitle: "Contact"},
		{name: "formation", page: "formation", wantCode: http.StatusOK, wantTitle: "Nos Formations"},
		{name: "activite", page: "activite", wantCode: http.StatusOK, wantTitle: "Activité"},
		{name: "presentation anonymous", page: "presentation", wantCode: http.StatusOK, wantTitle: "Présentation"},
		{name: "presentation bad token", page: "presentation", token: "lol", wantCode: http.StatusOK, wantTitle: "Présentation"},
		{name: "presentation admin", page: "presentation", token: ta.token(t, admin), wantCode: http.StatusOK, wantTitle: "Présentation"},
		{name: "presentation candidate", page: "presentation", token: ta.token(t, candidate), wantCode: http.StatusOK, wantTitle: "Présentation", wantInscription: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ta.serve(newAuthRequest(http.MethodGet, "/api/pages/"+tt.page, tt.token))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}

			var page struct {
				Name  string          `json:"name"`
				Title string          `json:"title"`
				Data  json.RawMessage `json:"data"`
			}
			unmarshal(t, rec, &page)
			assert.Equal(t, tt.page, page.Name)
			assert.Equal(t, tt.wantTitle, page.Title)

			if tt.page == content.PagePresentation {
				p := decode(t, page.Data)
				assert.NotZero(t, p.Year)
				assert.Equal(t, tt.wantInscription, p.Inscription != nil && string(*p.Inscription) != "null")
			}
		})
	}
}

func Test_publicApi_activities(t *testing.T) {
	ta := setup(t)

	rec := ta.serve(newRequest(http.MethodGet, "/api/activities"))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)

	rec = ta.serve(newRequest(http.MethodGet, "/api/activities/1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ta.serve(newRequest(http.MethodGet, "/api/activities/lol"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_publicApi_teamMember(t *testing.T) {
	ta := setup(t)

	tests := []httpTest{
		{name: "unknown", path: "/api/team-members/jean-koffi", wantCode: http.StatusNotFound},
		{name: "formations", path: "/api/formations", wantCode: http.StatusOK, wantData: marchallList(t)},
	}
	runHTTPTests(t, ta, tests)
}
