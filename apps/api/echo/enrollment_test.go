package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/hazira/apps/api/echo"
	"github.com/trezcool/hazira/core/enrollment"
	testutil "github.com/trezcool/hazira/tests"
)

func Test_enrollmentApi(t *testing.T) {
	f := setUp(t)
	cs := testutil.CreateBranch(t, f.branchSvc, "CS", map[string][]string{"3": {"Maths"}}, "3")
	body := marchallObj(t, enrollment.NewEnrollment{
		Slot:       5,
		Name:       "Grace",
		Phone:      "0700123456",
		RollNumber: "R-07",
		BranchID:   cs.ID,
		SemesterID: cs.Semesters[0].ID.String(),
	})
	grace := enrollment.Enrollment{
		ID:         "5",
		Name:       "Grace",
		Phone:      "0700123456",
		RollNumber: "R-07",
		Branch:     "CS",
		Semester:   "3",
	}
	noPending := marchallObj(t, httpErr{Error: enrollment.ErrNoPending.Error()})

	rec := f.serve(httpTest{path: "/v1/enrollment/slots"})
	require.Equal(t, http.StatusOK, rec.Code)
	var slots echoapi.SlotsResponse
	decode(t, rec, &slots)
	assert.Empty(t, slots.Reserved)
	assert.Len(t, slots.Available, enrollment.MaxSlot)

	f.run(t, []httpTest{
		{name: "nothing pending", path: "/v1/enrollment/pending", wantCode: http.StatusNotFound, wantData: noPending},
		{name: "register", method: http.MethodPost, path: "/v1/enrollment", body: body, wantCode: http.StatusCreated, wantData: marchallObj(t, grace)},
		{name: "pending", path: "/v1/enrollment/pending", wantCode: http.StatusOK, wantData: marchallObj(t, grace)},
		{
			name: "slot reserved", method: http.MethodPost, path: "/v1/enrollment", body: body,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"id": enrollment.ErrSlotReserved.Error()}),
		},
		{
			name: "invalid", method: http.MethodPost, path: "/v1/enrollment",
			body:     []byte(`{"id": 200, "name": "Grace", "number": "0700123456", "rollNumber": "R-07", "branchId": "b", "semesterId": "s"}`),
			wantCode: http.StatusBadRequest,
		},
	})

	rec = f.serve(httpTest{path: "/v1/enrollment/slots"})
	decode(t, rec, &slots)
	assert.Equal(t, []int{5}, slots.Reserved)
	assert.NotContains(t, slots.Available, 5)

	f.run(t, []httpTest{
		{name: "cancel", method: http.MethodDelete, path: "/v1/enrollment", wantCode: http.StatusOK, wantData: marchallObj(t, grace)},
		{name: "cancel again", method: http.MethodDelete, path: "/v1/enrollment", wantCode: http.StatusNotFound, wantData: noPending},
		{name: "cleared", path: "/v1/enrollment/pending", wantCode: http.StatusNotFound, wantData: noPending},
	})
}
