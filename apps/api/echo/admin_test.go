package echoapi

import (
	"context"
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toure-cloud/institutdeveloppement/core/activity"
	"github.com/toure-cloud/institutdeveloppement/core/content"
	"github.com/toure-cloud/institutdeveloppement/core/convocation"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	"github.com/toure-cloud/institutdeveloppement/core/user"
)

func Test_enrollmentApi_access(t *testing.T) {
	ta := setup(t)

	candidate, _ := ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	staffOnly := marchallObj(t, httpErr{Error: "Accès réservé à l'administration"})

	tests := []httpTest{
		{name: "dashboard: auth required", path: "/api/admin/dashboard", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "dashboard: staff only", path: "/api/admin/dashboard", token: ta.token(t, candidate), wantCode: http.StatusForbidden, wantData: staffOnly},
		{name: "enrollments: staff only", path: "/api/admin/enrollments", token: ta.token(t, candidate), wantCode: http.StatusForbidden, wantData: staffOnly},
		{name: "mail: staff only", method: http.MethodPost, path: "/api/admin/mail/test", token: ta.token(t, candidate), wantCode: http.StatusForbidden, wantData: staffOnly},
		{name: "activities: staff only", path: "/api/admin/activities", token: ta.token(t, candidate), wantCode: http.StatusForbidden, wantData: staffOnly},
	}
	runHTTPTests(t, ta, tests)
}

func Test_enrollmentApi_query(t *testing.T) {
	ta := setup(t)

	admin := ta.token(t, ta.createAdmin(t, "admin", false))
	_, awa := ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	_, ali := ta.createCandidate(t, "KONE", "Ali", "ali", "Gestion")
	_, ama := ta.createCandidate(t, "YAO", "Ama", "ama", "Informatique")

	ctx := context.Background()
	_, err := ta.enrRepo.UpdateStatus(ctx, []int64{ali.ID}, enrollment.StatusValidated, nil)
	require.NoError(t, err)
	_, err = ta.enrRepo.UpdateStatus(ctx, []int64{ama.ID}, enrollment.StatusRejected, nil)
	require.NoError(t, err)

	ids := func(enrollments []enrollment.Enrollment) []int64 {
		res := make([]int64, 0, len(enrollments))
		for _, e := range enrollments {
			res = append(res, e.ID)
		}
		return res
	}

	tests := []struct {
		name    string
		query   string
		wantIDs []int64
	}{
		{name: "all", query: "", wantIDs: []int64{awa.ID, ali.ID, ama.ID}},
		{name: "search", query: "?search=kou", wantIDs: []int64{awa.ID}},
		{name: "search email", query: "?search=ali@test", wantIDs: []int64{ali.ID}},
		{name: "status", query: "?statut=V", wantIDs: []int64{ali.ID}},
		{name: "unknown status is ignored", query: "?statut=X", wantIDs: []int64{awa.ID, ali.ID, ama.ID}},
		{name: "formation", query: "?formation=informatique", wantIDs: []int64{awa.ID, ama.ID}},
		{name: "combo", query: "?formation=Informatique&statut=R", wantIDs: []int64{ama.ID}},
		{name: "nothing", query: "?search=lol", wantIDs: []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ta.serve(newAuthRequest(http.MethodGet, "/api/admin/enrollments"+tt.query, admin))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var res EnrollmentsResponse
			unmarshal(t, rec, &res)
			assert.ElementsMatch(t, tt.wantIDs, ids(res.Results))
			assert.Equal(t, enrollment.StatusCounts{Total: 3, Pending: 1, Validated: 1, Rejected: 1}, res.Counts)
			assert.ElementsMatch(t, []string{"Informatique", "Gestion"}, res.Formations)
			assert.Len(t, res.Statuses, 3)
		})
	}
}

func Test_enrollmentApi_transitions(t *testing.T) {
	ta := setup(t)

	admin := ta.token(t, ta.createAdmin(t, "admin", false))
	_, awa := ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	_, ali := ta.createCandidate(t, "KONE", "Ali", "ali", "Gestion")

	path := func(id int64, action string) string {
		return "/api/admin/enrollments/" + strconv.FormatInt(id, 10) + "/" + action
	}
	invalid := marchallObj(t, httpErr{Error: enrollment.ErrInvalidTransition.Error()})

	ta.mailSvc.Reset()
	tests := []httpTest{
		{name: "validate unknown", path: path(999, "validate"), wantCode: http.StatusNotFound},
		{name: "validate bad id", path: "/api/admin/enrollments/abc/validate", wantCode: http.StatusNotFound},
		{name: "validate", path: path(awa.ID, "validate"), wantCode: http.StatusOK},
		{name: "validate again", path: path(awa.ID, "validate"), wantCode: http.StatusBadRequest, wantData: invalid},
		{name: "reject validated", path: path(awa.ID, "reject"), wantCode: http.StatusBadRequest, wantData: invalid},
		{name: "reject", path: path(ali.ID, "reject"), wantCode: http.StatusOK},
		{name: "validate rejected", path: path(ali.ID, "validate"), wantCode: http.StatusBadRequest, wantData: invalid},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.token = admin
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, ta.serve(newAuthRequest(tt.method, tt.path, tt.token)))
		})
	}

	assert.Empty(t, ta.mailSvc.SentMessages())

	rec := ta.serve(newAuthRequest(http.MethodGet, "/api/admin/enrollments/"+strconv.FormatInt(ali.ID, 10), admin))
	require.Equal(t, http.StatusOK, rec.Code)
	var detail EnrollmentDetail
	unmarshal(t, rec, &detail)
	assert.Equal(t, enrollment.StatusRejected, detail.Status)
	assert.Equal(t, "Rejeté", detail.StatusLabel)
	assert.Equal(t, "bg-danger", detail.StatusClass)
}

func Test_enrollmentApi_selection(t *testing.T) {
	ta := setup(t)

	admin := ta.token(t, ta.createAdmin(t, "admin", false))
	awaUsr, awa := ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	_, ali := ta.createCandidate(t, "KONE", "Ali", "ali", "Gestion")
	_, ama := ta.createCandidate(t, "YAO", "Ama", "ama", "Informatique")
	_, err := ta.enrRepo.UpdateStatus(context.Background(), []int64{ama.ID}, enrollment.StatusRejected, nil)
	require.NoError(t, err)

	body := func(ids ...int64) []byte { return marchallObj(t, IDsRequest{IDs: ids}) }

	t.Run("validate selection", func(t *testing.T) {
		ta.mailSvc.Reset()
		rec := ta.serve(newAuthRequest(http.MethodPost, "/api/admin/enrollments/validate-selection", admin, body(ali.ID, ama.ID, 999)))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, CountResponse{Success: "Inscriptions validées avec succès", Count: 2}),
		}, rec)
		assert.Len(t, ta.mailSvc.SentMessages(), 2)
	})

	t.Run("empty selection", func(t *testing.T) {
		rec := ta.serve(newAuthRequest(http.MethodPost, "/api/admin/enrollments/validate-selection", admin, body()))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, CountResponse{Success: "Inscriptions validées avec succès", Count: 0}),
		}, rec)
	})

	t.Run("delete selection", func(t *testing.T) {
		ta.mailSvc.Reset()
		rec := ta.serve(newAuthRequest(http.MethodPost, "/api/admin/enrollments/delete-selection", admin, body(ali.ID, ama.ID)))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, CountResponse{Success: "Inscriptions supprimées avec succès", Count: 2}),
		}, rec)
		assert.Len(t, ta.mailSvc.SentMessages(), 2)
	})

	t.Run("delete", func(t *testing.T) {
		rec := ta.serve(newAuthRequest(http.MethodDelete, "/api/admin/enrollments/"+strconv.FormatInt(awa.ID, 10), admin))
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = ta.serve(newAuthRequest(http.MethodDelete, "/api/admin/enrollments/"+strconv.FormatInt(awa.ID, 10), admin))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		// the candidate account outlives the enrollment
		_, err := ta.usrRepo.GetUser(context.Background(), user.GetFilter{ID: awaUsr.ID})
		assert.NoError(t, err)
	})

	rec := ta.serve(newAuthRequest(http.MethodGet, "/api/admin/enrollments", admin))
	var res EnrollmentsResponse
	unmarshal(t, rec, &res)
	assert.Empty(t, res.Results)
	assert.Equal(t, 0, res.Counts.Total)
}

func Test_enrollmentApi_dashboard(t *testing.T) {
	ta := setup(t)

	admin := ta.token(t, ta.createAdmin(t, "admin", false))

	rec := ta.serve(newAuthRequest(http.MethodGet, "/api/admin/dashboard", admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats enrollment.Stats
	unmarshal(t, rec, &stats)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0.0, stats.ValidationRate)
	assert.Empty(t, stats.Latest)

	ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	ta.createCandidate(t, "YAO", "Ama", "ama", "Informatique")
	_, ali := ta.createCandidate(t, "KONE", "Ali", "ali", "Gestion")
	_, err := ta.enrRepo.UpdateStatus(context.Background(), []int64{ali.ID}, enrollment.StatusValidated, nil)
	require.NoError(t, err)

	rec = ta.serve(newAuthRequest(http.MethodGet, "/api/admin/dashboard", admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &stats)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Validated)
	assert.Equal(t, 3, stats.Recent)
	assert.Equal(t, 33.3, stats.ValidationRate)
	assert.Len(t, stats.Latest, 3)
	if assert.Len(t, stats.ByFormation, 2) {
		assert.Equal(t, enrollment.FormationStat{Formation: "Informatique", Count: 2, Percentage: 66.7}, stats.ByFormation[0])
	}
}

func Test_enrollmentApi_export(t *testing.T) {
	ta := setup(t)

	admin := ta.token(t, ta.createAdmin(t, "admin", false))
	ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	ta.createCandidate(t, "KONE", "Ali", "ali", "Gestion")

	rec := ta.serve(newAuthRequest(http.MethodGet, "/api/admin/enrollments/export", admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "filename=inscriptions_")

	r := csv.NewReader(rec.Body)
	r.Comma = ';'
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Nom", rows[0][0])
	for _, row := range rows[1:] {
		assert.Equal(t, "En attente", row[6])
	}
}

func Test_enrollmentApi_email(t *testing.T) {
	ta := setup(t)

	admin := ta.token(t, ta.createAdmin(t, "admin", false))
	_, awa := ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	path := "/api/admin/enrollments/" + strconv.FormatInt(awa.ID, 10) + "/email"

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantSent int
	}{
		{name: "no subject", path: path, body: `{"sujet": " ", "message": "Bonjour"}`, wantCode: http.StatusBadRequest},
		{name: "no message", path: path, body: `{"sujet": "Dossier"}`, wantCode: http.StatusBadRequest},
		{name: "unknown enrollment", path: "/api/admin/enrollments/999/email", body: `{"sujet": "Dossier", "message": "Bonjour"}`, wantCode: http.StatusNotFound},
		{name: "sent", path: path, body: `{"sujet": "Dossier", "message": "Bonjour"}`, wantCode: http.StatusOK, wantSent: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta.mailSvc.Reset()
			rec := ta.serve(newAuthRequest(http.MethodPost, tt.path, admin, []byte(tt.body)))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			sent := ta.mailSvc.SentMessages()
			if assert.Len(t, sent, tt.wantSent) && tt.wantSent > 0 {
				assert.Equal(t, "awa@test.ci", sent[0].To[0].Address)
				assert.Equal(t, "Bonjour", sent[0].TextContent)
			}
		})
	}
}

func Test_mailingApi(t *testing.T) {
	ta := setup(t)

	admin := ta.token(t, ta.createAdmin(t, "admin", false))

	t.Run("notify all without candidates", func(t *testing.T) {
		rec := ta.serve(newAuthRequest(http.MethodPost, "/api/admin/mail/notify-all", admin))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	ta.createCandidate(t, "KOUASSI", "Awa", "awa", "Informatique")
	ta.createCandidate(t, "KONE", "Ali", "ali", "Gestion")

	tests := []struct {
		name      string
		fields    map[string][]string
		files     []formFileData
		wantCode  int
		wantCount int
		wantBcc   int
		wantAtt   int
	}{
		{
			name:     "no recipients",
			fields:   map[string][]string{"sujet": {"Rentrée"}, "message": {"Bonjour"}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid recipient",
			fields:   map[string][]string{"emails": {`["lol"]`}, "sujet": {"Rentrée"}, "message": {"Bonjour"}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no subject",
			fields:   map[string][]string{"emails": {`["awa@test.ci"]`}, "message": {"Bonjour"}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:      "json list, deduped",
			fields:    map[string][]string{"emails": {`["awa@test.ci", "AWA@test.ci", "ali@test.ci"]`}, "sujet": {"Rentrée"}, "message": {"Bonjour"}},
			wantCode:  http.StatusOK,
			wantCount: 2, wantBcc: 2,
		},
		{
			name:      "comma separated with attachment",
			fields:    map[string][]string{"emails": {"awa@test.ci,ali@test.ci"}, "sujet": {"Rentrée"}, "message": {"Bonjour"}},
			files:     []formFileData{{field: "piece_jointe", name: "calendrier.pdf", content: pdfData}},
			wantCode:  http.StatusOK,
			wantCount: 2, wantBcc: 2, wantAtt: 1,
		},
		{
			name: "attachment excluded",
			fields: map[string][]string{
				"emails": {"awa@test.ci"}, "sujet": {"Rentrée"}, "message": {"Bonjour"}, "includeAttachment": {"false"},
			},
			files:     []formFileData{{field: "piece_jointe", name: "calendrier.pdf", content: pdfData}},
			wantCode:  http.StatusOK,
			wantCount: 1, wantBcc: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta.mailSvc.Reset()
			rec := ta.serve(newMultipartRequest(t, http.MethodPost, "/api/admin/mail", admin, tt.fields, tt.files...))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				assert.Empty(t, ta.mailSvc.SentMessages())
				return
			}

			var res CountResponse
			unmarshal(t, rec, &res)
			assert.Equal(t, tt.wantCount, res.Count)
			sent := ta.mailSvc.SentMessages()
			if assert.Len(t, sent, 1) {
				assert.Len(t, sent[0].To, 1)
				assert.Len(t, sent[0].Bcc, tt.wantBcc)
				assert.Len(t, sent[0].Attachments, tt.wantAtt)
			}
		})
	}

	t.Run("notify all", func(t *testing.T) {
		ta.mailSvc.Reset()
		rec := ta.serve(newAuthRequest(http.MethodPost, "/api/admin/mail/notify-all", admin))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, CountResponse{Success: "Emails envoyés avec succès", Count: 2}),
		}, rec)
		assert.Len(t, ta.mailSvc.SentMessages(), 2)
	})

	t.Run("test email", func(t *testing.T) {
		ta.mailSvc.Reset()
		rec := ta.serve(newAuthRequest(http.MethodPost, "/api/admin/mail/test", admin, []byte(`{"email": "it@institut.ci"}`)))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, SuccessResponse{Success: "Email de test envoyé à it@institut.ci"}),
		}, rec)
		assert.Len(t, ta.mailSvc.SentMessages(), 1)

		rec = ta.serve(newAuthRequest(http.MethodPost, "/api/admin/mail/test", admin, []byte(`{"email": "lol"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_activityApi(t *testing.T) {
	ta := setup(t)

	admin := ta.token(t, ta.createAdmin(t, "admin", false))
	fields := func(title, date string) map[string][]string {
		return map[string][]string{
			"title":       {title},
			"description": {"Une journée de découverte."},
			"category":    {"nature"},
			"date":        {date},
			"location":    {"Parc du Banco"},
		}
	}

	t.Run("invalid", func(t *testing.T) {
		f := fields("Sortie", "2026-05-01")
		f["category"] = []string{"lol"}
		rec := ta.serve(newMultipartRequest(t, http.MethodPost, "/api/admin/activities", admin, f))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	var first ActivityResponse
	t.Run("create with a skipped image", func(t *testing.T) {
		rec := ta.serve(newMultipartRequest(t, http.MethodPost, "/api/admin/activities", admin, fields("Sortie", "2026-05-01"),
			formFileData{field: imagesField, name: "banco.png", content: pngData},
			formFileData{field: imagesField, name: "notes.pdf", content: pdfData},
		))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &first)
		assert.Equal(t, "Sortie", first.Activity.Title)
		assert.Len(t, first.Activity.Images, 1)
		assert.Len(t, first.Warnings, 1)
	})

	var second ActivityResponse
	t.Run("create", func(t *testing.T) {
		rec := ta.serve(newMultipartRequest(t, http.MethodPost, "/api/admin/activities", admin, fields("Conférence", "2026-06-01")))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &second)
		assert.Empty(t, second.Warnings)
	})

	t.Run("list newest first", func(t *testing.T) {
		rec := ta.serve(newAuthRequest(http.MethodGet, "/api/admin/activities", admin))
		require.Equal(t, http.StatusOK, rec.Code)
		var activities []activity.Activity
		unmarshal(t, rec, &activities)
		if assert.Len(t, activities, 2) {
			assert.Equal(t, second.Activity.ID, activities[0].ID)
			assert.Equal(t, first.Activity.ID, activities[1].ID)
		}
	})

	t.Run("public detail has neighbours", func(t *testing.T) {
		rec := ta.serve(newRequest(http.MethodGet, "/api/activities/"+strconv.FormatInt(first.Activity.ID, 10)))
		require.Equal(t, http.StatusOK, rec.Code)
		var detail ActivityDetail
		unmarshal(t, rec, &detail)
		assert.Nil(t, detail.Previous)
		if assert.NotNil(t, detail.Next) {
			assert.Equal(t, second.Activity.ID, detail.Next.ID)
		}
	})

	t.Run("update adds images", func(t *testing.T) {
		path := "/api/admin/activities/" + strconv.FormatInt(first.Activity.ID, 10)
		rec := ta.serve(newMultipartRequest(t, http.MethodPut, path, admin, fields("Sortie au Banco", "2026-05-01"),
			formFileData{field: imagesField, name: "banco2.png", content: pngData},
		))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res ActivityResponse
		unmarshal(t, rec, &res)
		assert.Equal(t, "Sortie au Banco", res.Activity.Title)
		assert.Len(t, res.Activity.Images, 2)
	})

	t.Run("delete image", func(t *testing.T) {
		imgID := first.Activity.Images[0].ID
		rec := ta.serve(newAuthRequest(http.MethodDelete, "/api/admin/activity-images/"+strconv.FormatInt(imgID, 10), admin))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, DeleteImageResponse{Success: "Image supprimée avec succès", ActivityID: first.Activity.ID}),
		}, rec)

		rec = ta.serve(newAuthRequest(http.MethodDelete, "/api/admin/activity-images/"+strconv.FormatInt(imgID, 10), admin))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		path := "/api/admin/activities/" + strconv.FormatInt(second.Activity.ID, 10)
		rec := ta.serve(newAuthRequest(http.MethodDelete, path, admin))
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = ta.serve(newAuthRequest(http.MethodGet, path, admin))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_convocationApi(t *testing.T) {
	ta := setup(t)

	admin := ta.token(t, ta.createAdmin(t, "admin", false))
	path := "/api/admin/convocations"

	rec := ta.serve(newAuthRequest(http.MethodPut, path, admin, []byte(`{"formation": "Informatique", "date_examen": "05/12/2026"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := []byte(`{"formation": "Informatique", "date_examen": "2026-12-05", "heure_examen": "08:30", "lieu_examen": "Amphi A", "salle": "A1"}`)
	rec = ta.serve(newAuthRequest(http.MethodPut, path, admin, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// one schedule per formation
	body = []byte(`{"formation": "Informatique", "date_examen": "2026-12-06", "heure_examen": "09:00", "lieu_examen": "Amphi B"}`)
	rec = ta.serve(newAuthRequest(http.MethodPut, path, admin, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ta.serve(newAuthRequest(http.MethodGet, path, admin))
	require.Equal(t, http.StatusOK, rec.Code)
	var schedules []convocation.Schedule
	unmarshal(t, rec, &schedules)
	require.Len(t, schedules, 1)
	assert.Equal(t, "Amphi B", schedules[0].Location)

	rec = ta.serve(newAuthRequest(http.MethodDelete, path+"/"+strconv.FormatInt(schedules[0].ID, 10), admin))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ta.serve(newAuthRequest(http.MethodDelete, path+"/"+strconv.FormatInt(schedules[0].ID, 10), admin))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_contentApi(t *testing.T) {
	ta := setup(t)

	admin := ta.token(t, ta.createAdmin(t, "admin", false))

	t.Run("partner", func(t *testing.T) {
		fields := map[string][]string{"nom": {"Université FHB"}, "category": {"academique"}, "website": {"https://univ-fhb.edu.ci"}}
		rec := ta.serve(newMultipartRequest(t, http.MethodPost, "/api/admin/partners", admin, fields,
			formFileData{field: "logo", name: "fhb.png", content: pngData},
		))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var p content.Partner
		unmarshal(t, rec, &p)
		assert.Equal(t, "/media/partenaires/fhb.png", p.LogoURL)

		// logos are public media
		rec = ta.serve(newRequest(http.MethodGet, p.LogoURL))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, pngData, rec.Body.Bytes())

		fields["nom"] = []string{"Cnam"}
		rec = ta.serve(newMultipartRequest(t, http.MethodPost, "/api/admin/partners", admin, fields,
			formFileData{field: "logo", name: "cnam.png", content: []byte("<html><script>alert(1)</script></html>")},
		))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

		fields["category"] = []string{"lol"}
		rec = ta.serve(newMultipartRequest(t, http.MethodPost, "/api/admin/partners", admin, fields))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("team member", func(t *testing.T) {
		fields := map[string][]string{
			"first_name":   {"Jean"},
			"last_name":    {"Koffi"},
			"category":     {"recherche"},
			"expertises":   {"IA", "Réseaux"},
			"linkedin_url": {"https://linkedin.com/in/jkoffi"},
		}
		for i := 0; i < 2; i++ {
			rec := ta.serve(newMultipartRequest(t, http.MethodPost, "/api/admin/team-members", admin, fields))
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		}

		rec := ta.serve(newRequest(http.MethodGet, "/api/team-members/jean-koffi"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var tm TeamMemberDetail
		unmarshal(t, rec, &tm)
		assert.Equal(t, "Jean Koffi", tm.FullName)
		assert.Equal(t, "Recherche", tm.CategoryDisplay)
		assert.Equal(t, map[string]string{"linkedin": "https://linkedin.com/in/jkoffi"}, tm.SocialLinks)
		assert.Len(t, tm.Expertises, 2)

		// slugs stay unique
		rec = ta.serve(newRequest(http.MethodGet, "/api/team-members/jean-koffi-1"))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("formation", func(t *testing.T) {
		body := []byte(`{"nom": "Gestion", "duree": 90}`)
		rec := ta.serve(newAuthRequest(http.MethodPost, "/api/admin/formations", admin, body))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = ta.serve(newAuthRequest(http.MethodPost, "/api/admin/formations", admin, body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		body = []byte(`{"duree_totale": 90, "date_debut": "2027-06-30", "date_fin": "2026-10-01"}`)
		rec = ta.serve(newAuthRequest(http.MethodPost, "/api/admin/formations/Gestion/programme", admin, body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = ta.serve(newMultipartRequest(t, http.MethodPost, "/api/admin/formations/Inconnue/maquette", admin,
			map[string][]string{"version": {"v1"}, "annee_academique": {"2026-2027"}, "credits_ects": {"60"}},
		))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = ta.serve(newMultipartRequest(t, http.MethodPost, "/api/admin/formations/Gestion/maquette", admin,
			map[string][]string{"version": {"v1"}, "annee_academique": {"2026-2027"}, "credits_ects": {"60"}},
			formFileData{field: "fichier", name: "maquette.pdf", content: pdfData},
		))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = ta.serve(newRequest(http.MethodGet, "/api/formations"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Gestion")
	})
}
