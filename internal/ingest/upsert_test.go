package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eshbtc/travelcheck/internal/model"
	"github.com/eshbtc/travelcheck/internal/security"
)

type mockEntryRepo struct {
	countByUserIDFunc             func(ctx context.Context, userID string) (int, error)
	findByUserAndConfirmationFunc func(ctx context.Context, userID, confirmationNumber string) (*model.TravelEntry, error)
	findByUserFlightAndDateFunc   func(ctx context.Context, userID, flightNumber string, entryDate time.Time) (*model.TravelEntry, error)
	findByUserAndContentHashFunc  func(ctx context.Context, userID, contentHash string) (*model.TravelEntry, error)

	created []*model.TravelEntry
	updated []*model.TravelEntry
}

func (m *mockEntryRepo) FindByID(ctx context.Context, id string) (*model.TravelEntry, error) {
	return nil, nil
}

func (m *mockEntryRepo) ListByUserID(ctx context.Context, userID string, entryType model.EntryType) ([]*model.TravelEntry, error) {
	return nil, nil
}

func (m *mockEntryRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	if m.countByUserIDFunc != nil {
		return m.countByUserIDFunc(ctx, userID)
	}
	return 0, nil
}

func (m *mockEntryRepo) FindByUserAndConfirmation(ctx context.Context, userID, confirmationNumber string) (*model.TravelEntry, error) {
	if m.findByUserAndConfirmationFunc != nil {
		return m.findByUserAndConfirmationFunc(ctx, userID, confirmationNumber)
	}
	return nil, nil
}

func (m *mockEntryRepo) FindByUserFlightAndDate(ctx context.Context, userID, flightNumber string, entryDate time.Time) (*model.TravelEntry, error) {
	if m.findByUserFlightAndDateFunc != nil {
		return m.findByUserFlightAndDateFunc(ctx, userID, flightNumber, entryDate)
	}
	return nil, nil
}

func (m *mockEntryRepo) FindByUserAndContentHash(ctx context.Context, userID, contentHash string) (*model.TravelEntry, error) {
	if m.findByUserAndContentHashFunc != nil {
		return m.findByUserAndContentHashFunc(ctx, userID, contentHash)
	}
	return nil, nil
}

func (m *mockEntryRepo) Create(ctx context.Context, entry *model.TravelEntry) error {
	m.created = append(m.created, entry)
	return nil
}

func (m *mockEntryRepo) Update(ctx context.Context, entry *model.TravelEntry) error {
	m.updated = append(m.updated, entry)
	return nil
}

func (m *mockEntryRepo) DeleteByID(ctx context.Context, id string) error { return nil }

func (m *mockEntryRepo) DeleteByUserID(ctx context.Context, userID string) error { return nil }

func (m *mockEntryRepo) ListDestinationCountryCodes(ctx context.Context) ([]string, error) {
	return nil, nil
}

func newService(repo *mockEntryRepo) *EntryUpsertService {
	return NewEntryUpsertService(repo, NewEmailExtractor(security.NewContentSanitizer()), nil, nil, 5000)
}

const confirmedEmail = `
	<p>Confirmation: XYZ789</p>
	<table>
		<tr><td>NH10</td><td>NRT</td><td>2023-03-01</td></tr>
		<tr><td>NH9</td><td>JFK</td><td>2023-03-10</td></tr>
	</table>`

// 新規メールの取り込みで区間ごとに記録が作成されることを検証
func TestIngestEmail_InsertsNewEntries(t *testing.T) {
	repo := &mockEntryRepo{}
	svc := newService(repo)

	result, err := svc.IngestEmail(context.Background(), "user-1", "mail-1", confirmedEmail)
	if err != nil {
		t.Fatalf("IngestEmail() error = %v", err)
	}

	if result.Inserted != 2 || result.Updated != 0 {
		t.Errorf("Inserted = %d, Updated = %d, want 2, 0", result.Inserted, result.Updated)
	}
	if len(repo.created) != 2 {
		t.Fatalf("作成された記録数 = %d, want 2", len(repo.created))
	}

	first := repo.created[0]
	if first.UserID != "user-1" {
		t.Errorf("UserID = %s, want user-1", first.UserID)
	}
	if !first.EntryDate.Equal(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("EntryDate = %v, want 2023-03-01", first.EntryDate)
	}
	if first.CountryCode != "NRT" {
		t.Errorf("CountryCode = %s, want NRT（抽出された生トークン）", first.CountryCode)
	}
	if first.FlightNumber != "NH10" {
		t.Errorf("FlightNumber = %s, want NH10", first.FlightNumber)
	}
	if first.ConfirmationNumber != "XYZ789" {
		t.Errorf("ConfirmationNumber = %s, want XYZ789", first.ConfirmationNumber)
	}
	if first.SourceType != model.SourceTypeEmail {
		t.Errorf("SourceType = %s, want email", first.SourceType)
	}
	if first.EntryType != model.EntryTypeEntry {
		t.Errorf("EntryType = %s, want entry", first.EntryType)
	}
	if first.ContentHash == "" {
		t.Error("ContentHashが計算されていません")
	}
	if first.ID == "" {
		t.Error("IDが採番されていません")
	}

	if repo.created[1].FlightNumber != "NH9" {
		t.Errorf("2区間目のFlightNumber = %s, want NH9", repo.created[1].FlightNumber)
	}
}

// 第1優先（予約番号）の同一性判定で既存記録が更新されることを検証
func TestIngestEmail_MatchByConfirmation(t *testing.T) {
	existing := &model.TravelEntry{
		ID:                 "entry-1",
		UserID:             "user-1",
		EntryDate:          time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
		CountryCode:        "NRT",
		ConfirmationNumber: "XYZ789",
		SourceType:         model.SourceTypeManual,
	}
	repo := &mockEntryRepo{
		findByUserAndConfirmationFunc: func(ctx context.Context, userID, confirmationNumber string) (*model.TravelEntry, error) {
			if confirmationNumber == "XYZ789" {
				return existing, nil
			}
			return nil, nil
		},
	}
	svc := newService(repo)

	// 予約番号XYZ789の1区間メール（日付が既存と異なる）
	result, err := svc.IngestEmail(context.Background(), "user-1", "mail-1",
		`<p>Confirmation: XYZ789</p><p>NH10 NRT 2023-03-01</p>`)
	if err != nil {
		t.Fatalf("IngestEmail() error = %v", err)
	}

	if result.Inserted != 0 || result.Updated != 1 {
		t.Errorf("Inserted = %d, Updated = %d, want 0, 1", result.Inserted, result.Updated)
	}
	if len(repo.updated) != 1 {
		t.Fatalf("更新された記録数 = %d, want 1", len(repo.updated))
	}
	got := repo.updated[0]
	if got.ID != "entry-1" {
		t.Errorf("更新対象ID = %s, want entry-1", got.ID)
	}
	if !got.EntryDate.Equal(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("EntryDate = %v, want 抽出された新しい日付", got.EntryDate)
	}
}

// 第2優先（便名+入国日）の同一性判定を検証
func TestIngestEmail_MatchByFlightAndDate(t *testing.T) {
	existing := &model.TravelEntry{
		ID:           "entry-1",
		UserID:       "user-1",
		EntryDate:    time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		CountryCode:  "NRT",
		FlightNumber: "NH10",
	}
	confirmationCalled := false
	repo := &mockEntryRepo{
		findByUserAndConfirmationFunc: func(ctx context.Context, userID, confirmationNumber string) (*model.TravelEntry, error) {
			confirmationCalled = true
			return nil, nil
		},
		findByUserFlightAndDateFunc: func(ctx context.Context, userID, flightNumber string, entryDate time.Time) (*model.TravelEntry, error) {
			if flightNumber == "NH10" && entryDate.Equal(existing.EntryDate) {
				return existing, nil
			}
			return nil, nil
		},
	}
	svc := newService(repo)

	// 予約番号のないメール
	result, err := svc.IngestEmail(context.Background(), "user-1", "mail-1",
		`<p>NH10 NRT 2023-03-01</p>`)
	if err != nil {
		t.Fatalf("IngestEmail() error = %v", err)
	}

	if confirmationCalled {
		t.Error("予約番号なしのメールで第1優先の検索が呼ばれています")
	}
	if result.Updated != 1 {
		t.Errorf("Updated = %d, want 1", result.Updated)
	}
}

// 第3優先（content_hash）の同一性判定を検証
func TestIngestEmail_MatchByContentHash(t *testing.T) {
	existing := &model.TravelEntry{
		ID:          "entry-1",
		UserID:      "user-1",
		EntryDate:   time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		CountryCode: "NRT",
	}
	repo := &mockEntryRepo{
		findByUserAndContentHashFunc: func(ctx context.Context, userID, contentHash string) (*model.TravelEntry, error) {
			return existing, nil
		},
	}
	svc := newService(repo)

	// 予約番号も便名もないメール
	result, err := svc.IngestEmail(context.Background(), "user-1", "mail-1",
		`<p>arrival NRT 2023-03-01</p>`)
	if err != nil {
		t.Fatalf("IngestEmail() error = %v", err)
	}

	if result.Inserted != 0 || result.Updated != 1 {
		t.Errorf("Inserted = %d, Updated = %d, want 0, 1", result.Inserted, result.Updated)
	}
}

// 抽出可能な区間がないメールでEXTRACTION_FAILEDエラーを返すことを検証
func TestIngestEmail_ExtractionFailed(t *testing.T) {
	repo := &mockEntryRepo{}
	svc := newService(repo)

	_, err := svc.IngestEmail(context.Background(), "user-1", "mail-1",
		`<p>thank you for flying with us</p>`)
	if err == nil {
		t.Fatal("IngestEmail() error = nil, want EXTRACTION_FAILED")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeExtractionFailed {
		t.Errorf("error = %v, want %s", err, model.ErrCodeExtractionFailed)
	}
	if len(repo.created) != 0 {
		t.Errorf("抽出失敗時に記録が作成されています")
	}
}

// 記録数上限の超過でENTRY_LIMITエラーを返すことを検証
func TestIngestEmail_EntryLimit(t *testing.T) {
	repo := &mockEntryRepo{
		countByUserIDFunc: func(ctx context.Context, userID string) (int, error) {
			return 4999, nil
		},
	}
	svc := newService(repo)

	// 2区間のメールで4999 + 2 > 5000
	_, err := svc.IngestEmail(context.Background(), "user-1", "mail-1", confirmedEmail)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEntryLimit {
		t.Errorf("error = %v, want %s", err, model.ErrCodeEntryLimit)
	}
	if len(repo.created) != 0 {
		t.Errorf("上限超過時に記録が作成されています")
	}
}

// 同一性判定のエラーが呼び出し元へ伝播することを検証
func TestIngestEmail_FindError(t *testing.T) {
	wantErr := errors.New("db down")
	repo := &mockEntryRepo{
		findByUserAndConfirmationFunc: func(ctx context.Context, userID, confirmationNumber string) (*model.TravelEntry, error) {
			return nil, wantErr
		},
	}
	svc := newService(repo)

	_, err := svc.IngestEmail(context.Background(), "user-1", "mail-1", confirmedEmail)
	if !errors.Is(err, wantErr) {
		t.Errorf("IngestEmail() error = %v, want %v をラップしたエラー", err, wantErr)
	}
}
