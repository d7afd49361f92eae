package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"activity-reward-system/metrics"
	"activity-reward-system/models"
	"activity-reward-system/services"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const profilesPath = "/api/v1/public/profiles"

// RemoteProfile is one entry of the identity service's change feed.
type RemoteProfile struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	Username    string    `json:"username"`
	DisplayName *string   `json:"display_name,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type GetProfileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProfileSyncWorker mirrors display names from the identity service into
// users. Rollup columns are never touched.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	serviceToken string
	httpClient   *http.Client

	mu    sync.Mutex
	since time.Time
}

func NewProfileSyncWorker(db *gorm.DB, baseURL, serviceToken string, interval time.Duration) *ProfileSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ProfileSyncWorker{
		db:           db,
		interval:     interval,
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	zap.L().Info("[SYNC] starting profile sync worker", zap.String("base_url", w.baseURL), zap.Duration("interval", w.interval))
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		zap.L().Warn("[SYNC] initial sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				zap.L().Error("[SYNC] sync batch failed", zap.Error(err))
			}
		case <-ctx.Done():
			zap.L().Info("[SYNC] profile sync worker stopped")
			return
		}
	}
}

// Cursor is the newest updated_at applied so far.
func (w *ProfileSyncWorker) Cursor() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.since
}

// SyncOnce fetches changes since the cursor and applies them. It returns the
// number of profiles applied.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since := w.Cursor()
	profiles, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	var applied, failed int
	latest := since
	for _, p := range profiles {
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
		if err := w.apply(ctx, p); err != nil {
			failed++
			metrics.ProfileSyncTotal.WithLabelValues("failure").Inc()
			zap.L().Warn("[SYNC] failed to apply profile",
				zap.String("address", p.Address),
				zap.String("username", p.Username),
				zap.Error(err),
			)
			continue
		}
		applied++
		metrics.ProfileSyncTotal.WithLabelValues("success").Inc()
	}

	w.mu.Lock()
	if latest.After(w.since) {
		w.since = latest
	}
	w.mu.Unlock()

	zap.L().Info("[SYNC] profiles synced",
		zap.Int("received", len(profiles)),
		zap.Int("applied", applied),
		zap.Int("failed", failed),
		zap.Time("cursor", latest),
	)
	return applied, nil
}

func (w *ProfileSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid identity service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(profilesPath)
	q := endpoint.Query()
	if since.IsZero() {
		since = time.Unix(0, 0)
	}
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("identity service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out GetProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode identity service response: %w", err)
	}
	return out.Users, nil
}

func (w *ProfileSyncWorker) apply(ctx context.Context, p RemoteProfile) error {
	address := strings.TrimSpace(p.Address)
	if address == "" {
		return errors.New("profile without address")
	}
	raw := p.Username
	if p.DisplayName != nil && strings.TrimSpace(*p.DisplayName) != "" {
		raw = *p.DisplayName
	}
	name, key, err := services.NormalizeDisplayName(raw)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	row := models.User{Address: address, DisplayName: &name, NameKey: &key, CreatedAt: now, UpdatedAt: now}
	err = w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "name_key", "updated_at"}),
	}).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return services.ErrNameTaken
	}
	return err
}
