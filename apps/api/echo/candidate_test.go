package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toure-cloud/institutdeveloppement/core/convocation"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	"github.com/toure-cloud/institutdeveloppement/core/user"
)

func registrationFields(overrides map[string]string) map[string][]string {
	fields := map[string]string{
		"nom":                    "Kouassi",
		"prenom":                 "awa",
		"sexe":                   "F",
		"date_naissance":         "2000-03-12",
		"lieu_naissance":         "Bouaké",
		"email":                  "awa.kouassi@test.ci",
		"email_confirmation":     "awa.kouassi@test.ci",
		"telephone":              "+2250701020304",
		"cmu":                    "CMU-001",
		"cni":                    "CNI-001",
		"serie_bac":              "C",
		"annee_obtentionbac":     "2018",
		"mention_bac":            "AB",
		"numero_bac":             "BAC-001",
		"ecole_diplomebac":       "Lycée Classique",
		"annee_obtentionlicence": "2021",
		"password":               "Kz9!plmQ2xw",
	}
	for k, v := range overrides {
		fields[k] = v
	}
	form := make(map[string][]string, len(fields))
	for k, v := range fields {
		form[k] = []string{v}
	}
	return form
}

func registrationUploads() []formFileData {
	return []formFileData{
		{field: "photo_identite", name: "photo.png", content: pngData},
		{field: "bac_scan", name: "bac.pdf", content: pdfData},
		{field: "diplome_scan", name: "licence.pdf", content: pdfData},
		{field: "extrait_naissance", name: "extrait.pdf", content: pdfData},
	}
}

func Test_candidateApi_register(t *testing.T) {
	ta := setup(t)
	path := "/api/candidates/register/Informatique"

	t.Run("missing documents", func(t *testing.T) {
		uploads := registrationUploads()[:2]
		rec := ta.serve(newMultipartRequest(t, http.MethodPost, path, "", registrationFields(nil), uploads...))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Fichiers obligatoires manquants")
	})

	t.Run("emails mismatch", func(t *testing.T) {
		fields := registrationFields(map[string]string{"email_confirmation": "other@test.ci"})
		rec := ta.serve(newMultipartRequest(t, http.MethodPost, path, "", fields, registrationUploads()...))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "email_confirmation")
	})

	t.Run("licence before bac", func(t *testing.T) {
		fields := registrationFields(map[string]string{"annee_obtentionlicence": "2015"})
		rec := ta.serve(newMultipartRequest(t, http.MethodPost, path, "", fields, registrationUploads()...))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "annee_obtentionlicence")
	})

	t.Run("photo must be an image", func(t *testing.T) {
		uploads := registrationUploads()
		uploads[0].content = pdfData
		rec := ta.serve(newMultipartRequest(t, http.MethodPost, path, "", registrationFields(nil), uploads...))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "photo")
	})

	var token string
	t.Run("registered", func(t *testing.T) {
		ta.mailSvc.Reset()
		rec := ta.serve(newMultipartRequest(t, http.MethodPost, path, "", registrationFields(nil), registrationUploads()...))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var res RegisterResponse
		unmarshal(t, rec, &res)
		token = res.Token
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, portalCandidate, res.Portal)
		assert.Equal(t, "KOUASSI", res.Enrollment.LastName)
		assert.Equal(t, "Awa", res.Enrollment.FirstName)
		assert.Equal(t, "Informatique", res.Enrollment.Formation)
		assert.Equal(t, enrollment.StatusPending, res.Enrollment.Status)
		assert.Equal(t, enrollment.DefaultLicence, res.Enrollment.Licence)
		assert.Equal(t, 100.0, res.Enrollment.Documents.Completion())

		// confirmation email with the registration sheet
		sent := ta.mailSvc.SentMessages()
		if assert.Len(t, sent, 1) {
			assert.Equal(t, "awa.kouassi@test.ci", sent[0].To[0].Address)
			assert.Len(t, sent[0].Attachments, 1)
		}

		usr, err := ta.usrRepo.GetUser(context.Background(), user.GetFilter{Email: "awa.kouassi@test.ci"})
		require.NoError(t, err)
		assert.True(t, usr.IsCandidate())
	})

	t.Run("duplicate", func(t *testing.T) {
		fields := registrationFields(map[string]string{
			"email":              "other@test.ci",
			"email_confirmation": "other@test.ci",
		})
		rec := ta.serve(newMultipartRequest(t, http.MethodPost, path, "", fields, registrationUploads()...))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("space", func(t *testing.T) {
		rec := ta.serve(newAuthRequest(http.MethodGet, "/api/candidates/me", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res SpaceResponse
		unmarshal(t, rec, &res)
		assert.Equal(t, "En attente", res.StatusLabel)
		assert.Equal(t, "bg-warning", res.StatusClass)
		assert.Nil(t, res.Formation)
		assert.Len(t, res.Documents, len(enrollment.DocumentKinds))
		for _, url := range res.Documents {
			assert.True(t, strings.HasPrefix(url, "/api/candidates/me/documents/"), url)
		}
	})
}

func Test_candidateApi_access(t *testing.T) {
	ta := setup(t)

	admin := ta.createAdmin(t, "admin", false)
	orphan := ta.createAdmin(t, "orphan", false)
	orphan.Roles = []string{user.RoleCandidate}

	tests := []httpTest{
		{name: "Auth required", path: "/api/candidates/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Candidates only", path: "/api/candidates/me", token: ta.token(t, admin),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "Accès réservé aux candidats"}),
		},
		{
			name: "No enrollment", path: "/api/candidates/me", token: ta.token(t, orphan),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "Aucune inscription trouvée pour votre compte."}),
		},
	}
	runHTTPTests(t, ta, tests)
}

func Test_candidateApi_profile(t *testing.T) {
	ta := setup(t)

	usr, e := ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	_, other := ta.createCandidate(t, "KONE", "Ali", "ali", "Informatique")
	token := ta.token(t, usr)

	tests := []struct {
		name     string
		method   string
		body     string
		wantCode int
		wantData []byte
	}{
		{name: "PATCH nothing", method: http.MethodPatch, body: `{}`, wantCode: http.StatusBadRequest},
		{name: "PATCH invalid phone", method: http.MethodPatch, body: `{"telephone": "abc"}`, wantCode: http.StatusBadRequest},
		{name: "PATCH CMU taken", method: http.MethodPatch, body: `{"cmu": "` + other.CMU + `"}`, wantCode: http.StatusBadRequest},
		{
			name: "PATCH unchanged", method: http.MethodPatch, body: `{"cmu": "` + e.CMU + `"}`, wantCode: http.StatusOK,
			wantData: marchallObj(t, PatchProfileResponse{Success: "Profil mis à jour avec succès", UpdatedFields: []string{}}),
		},
		{
			name: "PATCH updated", method: http.MethodPatch, body: `{"telephone": "+2250505050505", "lieu_naissance": " Yamoussoukro "}`,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, PatchProfileResponse{
				Success:       "Profil mis à jour avec succès",
				UpdatedFields: []string{"telephone", "lieu_naissance"},
			}),
		},
		{name: "PUT", method: http.MethodPut, body: `{"licence": "Licence Maths"}`, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ta.serve(newAuthRequest(tt.method, "/api/candidates/me/profile", token, []byte(tt.body)))
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
		})
	}

	got, err := ta.enrRepo.GetEnrollment(context.Background(), enrollment.GetFilter{ID: e.ID})
	require.NoError(t, err)
	assert.Equal(t, "+2250505050505", got.Phone)
	assert.Equal(t, "Yamoussoukro", got.BirthPlace)
	assert.Equal(t, "Licence Maths", got.Licence)
}

func Test_candidateApi_uploadDocument(t *testing.T) {
	ta := setup(t)

	usr, e := ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	token := ta.token(t, usr)
	path := "/api/candidates/me/documents"

	tests := []struct {
		name     string
		kind     string
		file     *formFileData
		wantCode int
	}{
		{name: "invalid kind", kind: "lol", file: &formFileData{field: "document", name: "a.pdf", content: pdfData}, wantCode: http.StatusBadRequest},
		{name: "no file", kind: "bac", wantCode: http.StatusBadRequest},
		{name: "invalid type", kind: "photo", file: &formFileData{field: "document", name: "a.pdf", content: pdfData}, wantCode: http.StatusBadRequest},
		{name: "html name", kind: "photo", file: &formFileData{field: "document", name: "photo.html", content: pngData}, wantCode: http.StatusBadRequest},
		{name: "uploaded", kind: "bac", file: &formFileData{field: "document", name: "bac.pdf", content: pdfData}, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var files []formFileData
			if tt.file != nil {
				files = append(files, *tt.file)
			}
			fields := map[string][]string{"document_type": {tt.kind}}
			rec := ta.serve(newMultipartRequest(t, http.MethodPost, path, token, fields, files...))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	got, err := ta.enrRepo.GetEnrollment(context.Background(), enrollment.GetFilter{ID: e.ID})
	require.NoError(t, err)
	assert.Equal(t, "documents/bac/KOUASSI_Awa_bac.pdf", got.Documents.Get(enrollment.DocBac))
	assert.Empty(t, got.Documents.Get(enrollment.DocPhoto))

	t.Run("download", func(t *testing.T) {
		rec := ta.serve(newAuthRequest(http.MethodGet, path+"/bac", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
		assert.Equal(t, "inline; filename=KOUASSI_Awa_bac.pdf", rec.Header().Get(echo.HeaderContentDisposition))
		assert.Equal(t, pdfData, rec.Body.Bytes())

		rec = ta.serve(newAuthRequest(http.MethodGet, path+"/photo", token))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = ta.serve(newAuthRequest(http.MethodGet, path+"/lol", token))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = ta.serve(newRequest(http.MethodGet, path+"/bac"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("not public media", func(t *testing.T) {
		for _, p := range []string{"/media/documents/bac/KOUASSI_Awa_bac.pdf", "/media/x/../documents/bac/KOUASSI_Awa_bac.pdf", "/media/documents"} {
			rec := ta.serve(newRequest(http.MethodGet, p))
			assert.Equal(t, http.StatusNotFound, rec.Code, p)
		}
	})

	t.Run("staff download", func(t *testing.T) {
		adminPath := "/api/admin/enrollments/" + strconv.FormatInt(e.ID, 10) + "/documents/bac"
		rec := ta.serve(newAuthRequest(http.MethodGet, adminPath, ta.token(t, ta.createAdmin(t, "admin", false))))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, pdfData, rec.Body.Bytes())

		rec = ta.serve(newAuthRequest(http.MethodGet, adminPath, token))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func Test_candidateApi_convocation(t *testing.T) {
	ta := setup(t)

	usr, _ := ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	token := ta.token(t, usr)

	rec := ta.serve(newAuthRequest(http.MethodGet, "/api/candidates/me/convocation", token))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: convocation.ErrNotFound.Error()}),
	}, rec)

	admin := ta.createAdmin(t, "admin", false)
	body := []byte(`{"formation": "Informatique", "date_examen": "2026-12-05", "heure_examen": "08:30", "lieu_examen": "Amphi A"}`)
	rec = ta.serve(newAuthRequest(http.MethodPut, "/api/admin/convocations", ta.token(t, admin), body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ta.serve(newAuthRequest(http.MethodGet, "/api/candidates/me/convocation", token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "convocation_KOUASSI_Awa.pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func Test_candidateApi_formation(t *testing.T) {
	ta := setup(t)

	usr, _ := ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	token := ta.token(t, usr)
	admin := ta.token(t, ta.createAdmin(t, "admin", false))

	rec := ta.serve(newAuthRequest(http.MethodGet, "/api/candidates/me/formation", token))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := []byte(`{"nom": "Informatique", "duree": 120, "cout": 350000, "ues": [{"nom": "Algorithmique", "code": "UE1", "ecues": [{"nom": "Structures", "code": "ECUE1"}]}]}`)
	rec = ta.serve(newAuthRequest(http.MethodPost, "/api/admin/formations", admin, body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ta.serve(newAuthRequest(http.MethodGet, "/api/candidates/me/formation", token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Algorithmique")

	rec = ta.serve(newAuthRequest(http.MethodGet, "/api/candidates/me/programme", token))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body = []byte(`{"duree_totale": 120, "date_debut": "2026-10-01", "date_fin": "2027-06-30", "modules": [{"nom": "Go", "duree_heures": 40}]}`)
	rec = ta.serve(newAuthRequest(http.MethodPost, "/api/admin/formations/Informatique/programme", admin, body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ta.serve(newAuthRequest(http.MethodGet, "/api/candidates/me/programme", token))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
