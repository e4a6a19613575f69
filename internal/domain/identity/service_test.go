package identity

import (
	"context"
	"errors"
	"testing"
)

type fakePatients struct {
	patients map[int64]*Patient
	updates  [][]Assignment
	nextID   int64
}

func newFakePatients() *fakePatients {
	return &fakePatients{patients: map[int64]*Patient{}, nextID: 10}
}

func (f *fakePatients) GetByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (f *fakePatients) Create(_ context.Context, p *Patient) error {
	f.nextID++
	p.ID = f.nextID
	f.patients[p.ID] = p
	return nil
}

func (f *fakePatients) Update(_ context.Context, id int64, set []Assignment) error {
	if _, ok := f.patients[id]; !ok {
		return ErrPatientNotFound
	}
	f.updates = append(f.updates, set)
	return nil
}

type fakeInsurance struct {
	primary map[int64]*Insurance
	created []*Insurance
	updated map[int64][]Assignment
}

func newFakeInsurance() *fakeInsurance {
	return &fakeInsurance{primary: map[int64]*Insurance{}, updated: map[int64][]Assignment{}}
}

func (f *fakeInsurance) GetPrimary(_ context.Context, patientID int64) (*Insurance, error) {
	return f.primary[patientID], nil
}

func (f *fakeInsurance) Create(_ context.Context, in *Insurance) error {
	in.ID = int64(500 + len(f.created))
	f.created = append(f.created, in)
	f.primary[in.PatientID] = in
	return nil
}

func (f *fakeInsurance) Update(_ context.Context, id int64, set []Assignment) error {
	f.updated[id] = set
	return nil
}

type passTx struct{}

func (passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func strPtr(s string) *string { return &s }

func newTestService() (*Service, *fakePatients, *fakeInsurance) {
	patients, insurance := newFakePatients(), newFakeInsurance()
	patients.patients[1] = &Patient{ID: 1, OrganizationID: 3, FirstName: "Ann", LastName: "Lee"}
	return NewService(patients, insurance, passTx{}, ""), patients, insurance
}

func columns(set []Assignment) map[string]any {
	out := make(map[string]any, len(set))
	for _, a := range set {
		out[a.Column] = a.Value
	}
	return out
}

func TestGetPatientForValidation(t *testing.T) {
	svc, _, _ := newTestService()
	if p, err := svc.GetPatientForValidation(context.Background(), 1); err != nil || p.ID != 1 {
		t.Fatalf("unexpected result: %v, %v", p, err)
	}
	if _, err := svc.GetPatientForValidation(context.Background(), 99); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestGetPrimaryInsurance_Absent(t *testing.T) {
	svc, _, _ := newTestService()
	in, err := svc.GetPrimaryInsurance(context.Background(), 1)
	if err != nil || in != nil {
		t.Errorf("expected nil, nil; got %v, %v", in, err)
	}
}

func TestUpdatePatientInfo_SparseWithNormalizedPhone(t *testing.T) {
	svc, patients, _ := newTestService()
	id, err := svc.UpdatePatientInfo(context.Background(), 1, PatientInfoPatch{
		City:        strPtr("Springfield"),
		PhoneNumber: strPtr("(201) 555-0123"),
	})
	if err != nil || id != 1 {
		t.Fatalf("UpdatePatientInfo() = %d, %v", id, err)
	}
	if len(patients.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(patients.updates))
	}
	cols := columns(patients.updates[0])
	if len(cols) != 2 {
		t.Errorf("expected exactly 2 columns, got %v", cols)
	}
	if cols["city"] != "Springfield" || cols["phone_number"] != "+12015550123" {
		t.Errorf("unexpected columns: %v", cols)
	}
}

func TestUpdatePatientInfo_Errors(t *testing.T) {
	svc, patients, _ := newTestService()

	if _, err := svc.UpdatePatientInfo(context.Background(), 1, PatientInfoPatch{PhoneNumber: strPtr("12345")}); !errors.Is(err, ErrInvalidPhone) {
		t.Errorf("expected ErrInvalidPhone, got %v", err)
	}
	if _, err := svc.UpdatePatientInfo(context.Background(), 1, PatientInfoPatch{Email: strPtr("not-an-email")}); !errors.Is(err, ErrInvalidPatch) {
		t.Errorf("expected ErrInvalidPatch, got %v", err)
	}
	if _, err := svc.UpdatePatientInfo(context.Background(), 1, PatientInfoPatch{DateOfBirth: strPtr("1/2/1970")}); !errors.Is(err, ErrInvalidPatch) {
		t.Errorf("expected ErrInvalidPatch for date, got %v", err)
	}
	blanks := []PatientInfoPatch{
		{FirstName: strPtr("")},
		{LastName: strPtr("   ")},
		{DateOfBirth: strPtr("")},
		{Gender: strPtr("")},
	}
	for _, patch := range blanks {
		if _, err := svc.UpdatePatientInfo(context.Background(), 1, patch); !errors.Is(err, ErrInvalidPatch) {
			t.Errorf("blank field %+v: expected ErrInvalidPatch, got %v", patch, err)
		}
	}
	if len(patients.updates) != 0 {
		t.Error("rejected patches must not be written")
	}

	if _, err := svc.UpdatePatientInfo(context.Background(), 99, PatientInfoPatch{}); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("empty patch on unknown patient: expected ErrPatientNotFound, got %v", err)
	}
	if id, err := svc.UpdatePatientInfo(context.Background(), 1, PatientInfoPatch{}); err != nil || id != 1 {
		t.Errorf("empty patch: got %d, %v", id, err)
	}
	if len(patients.updates) != 0 {
		t.Error("empty patch must not write")
	}
}

func TestUpdatePatientFromParsedEmr(t *testing.T) {
	svc, patients, _ := newTestService()

	if err := svc.UpdatePatientFromParsedEmr(context.Background(), 99, PatientEMRPatch{}); err != nil {
		t.Errorf("empty patch should be a no-op, got %v", err)
	}
	if len(patients.updates) != 0 {
		t.Fatal("empty patch must not write")
	}

	err := svc.UpdatePatientFromParsedEmr(context.Background(), 1, PatientEMRPatch{
		AddressLine1: strPtr("12 Oak St"),
		ZipCode:      strPtr("62704"),
	})
	if err != nil {
		t.Fatalf("UpdatePatientFromParsedEmr() error: %v", err)
	}
	cols := columns(patients.updates[0])
	if cols["address_line1"] != "12 Oak St" || cols["zip_code"] != "62704" || len(cols) != 2 {
		t.Errorf("unexpected columns: %v", cols)
	}
}

func TestUpdateInsuranceFromParsedEmr(t *testing.T) {
	svc, _, insurance := newTestService()

	if err := svc.UpdateInsuranceFromParsedEmr(context.Background(), 1, InsurancePatch{}); err != nil || len(insurance.created) != 0 {
		t.Fatalf("empty patch should be a no-op: %v", err)
	}

	if err := svc.UpdateInsuranceFromParsedEmr(context.Background(), 1, InsurancePatch{InsurerName: strPtr("Acme Health")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(insurance.created) != 1 || !insurance.created[0].IsPrimary || *insurance.created[0].InsurerName != "Acme Health" {
		t.Fatalf("expected a new primary insurance row, got %+v", insurance.created)
	}

	if err := svc.UpdateInsuranceFromParsedEmr(context.Background(), 1, InsurancePatch{PolicyNumber: strPtr("XYZ123")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(insurance.created) != 1 {
		t.Error("existing primary insurance should be updated, not duplicated")
	}
	cols := columns(insurance.updated[insurance.created[0].ID])
	if cols["policy_number"] != "XYZ123" || len(cols) != 1 {
		t.Errorf("unexpected update columns: %v", cols)
	}
}

func TestCreateTemporaryPatient(t *testing.T) {
	svc, patients, _ := newTestService()
	id, err := svc.CreateTemporaryPatient(context.Background(), 3, TemporaryPatientInput{
		FirstName: " Bo ", LastName: "Diaz", DateOfBirth: "1981-07-14", Gender: "male", PhoneNumber: "201-555-0123",
	})
	if err != nil {
		t.Fatalf("CreateTemporaryPatient() error: %v", err)
	}
	p := patients.patients[id]
	if p == nil || !p.IsTemporary || p.OrganizationID != 3 || p.FirstName != "Bo" {
		t.Fatalf("unexpected patient: %+v", p)
	}
	if p.DateOfBirth == nil || p.DateOfBirth.Year() != 1981 {
		t.Errorf("unexpected date of birth: %v", p.DateOfBirth)
	}
	if p.PhoneNumber == nil || *p.PhoneNumber != "+12015550123" {
		t.Errorf("unexpected phone: %v", p.PhoneNumber)
	}

	if _, err := svc.CreateTemporaryPatient(context.Background(), 3, TemporaryPatientInput{FirstName: "A"}); !errors.Is(err, ErrInvalidPatch) {
		t.Errorf("expected ErrInvalidPatch, got %v", err)
	}
}

func TestPatientInfoPatch_Assignments(t *testing.T) {
	cols := columns(PatientInfoPatch{
		FirstName:    strPtr("Ann"),
		DateOfBirth:  strPtr("1970-02-03"),
		AddressLine2: strPtr("Apt 4"),
	}.Assignments())
	if len(cols) != 3 {
		t.Fatalf("expected 3 columns, got %v", cols)
	}
	for _, c := range []string{"first_name", "date_of_birth", "address_line2"} {
		if _, ok := cols[c]; !ok {
			t.Errorf("missing column %s", c)
		}
	}
}

func TestUpdateSQL(t *testing.T) {
	query, args := updateSQL("patients", 7, []Assignment{{"city", "Austin"}, {"state", "TX"}})
	want := "UPDATE patients SET city = $2, state = $3, updated_at = NOW() WHERE id = $1"
	if query != want {
		t.Errorf("got %q, want %q", query, want)
	}
	if len(args) != 3 || args[0] != int64(7) || args[2] != "TX" {
		t.Errorf("unexpected args: %v", args)
	}
}
