package speaker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/701789262a/backend-dailychat/database"
	apperrors "github.com/701789262a/backend-dailychat/errors"
)

// Repository is the gorm-backed speaker store.
type Repository struct {
	db  *database.DB
	now func() time.Time
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// CreateSpeaker adds a speaker. Names are unique.
func (r *Repository) CreateSpeaker(ctx context.Context, name string) (*Speaker, error) {
	s := &Speaker{Name: name, CreatedAt: r.now().UTC()}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, database.FromDatabase(err, "speaker", name)
	}
	return s, nil
}

// Enroll creates a speaker and, when sub is non-nil, stores it as the
// speaker's first reference evaluated by itself.
func (r *Repository) Enroll(ctx context.Context, name string, sub *Subclip) (*Speaker, error) {
	s := &Speaker{Name: name, CreatedAt: r.now().UTC()}
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(s).Error; err != nil {
			return database.FromDatabase(err, "speaker", name)
		}
		if sub == nil {
			return nil
		}
		sub.SpeakerID = s.ID
		sub.EvaluatedBy = sub.Hash
		sub.Score = 1
		return r.upsert(tx, sub)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) GetSpeaker(ctx context.Context, id int64) (*Speaker, error) {
	var s Speaker
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, database.FromDatabase(err, "speaker", strconv.FormatInt(id, 10))
	}
	return &s, nil
}

func (r *Repository) ListSpeakers(ctx context.Context) ([]Speaker, error) {
	var out []Speaker
	if err := r.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, database.FromDatabase(err, "speaker", "")
	}
	return out, nil
}

// SaveSubclip inserts or replaces a subclip. The last write for a hash wins.
func (r *Repository) SaveSubclip(ctx context.Context, sub *Subclip) error {
	return r.upsert(r.db.WithContext(ctx), sub)
}

func (r *Repository) upsert(tx *gorm.DB, sub *Subclip) error {
	now := r.now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	if len(sub.SegmentJSON) == 0 {
		sub.SegmentJSON = "{}"
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "hash"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"speaker_id", "evaluated_by", "requester", "score", "segment_json", "recorded_at", "updated_at",
		}),
	}).Create(sub).Error
	if err != nil {
		return database.FromDatabase(err, "subclip", sub.Hash)
	}
	return nil
}

func (r *Repository) GetSubclip(ctx context.Context, hash string) (*Subclip, error) {
	var sub Subclip
	if err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&sub).Error; err != nil {
		return nil, database.FromDatabase(err, "subclip", hash)
	}
	return &sub, nil
}

// Reassign moves a subclip to another known speaker.
func (r *Repository) Reassign(ctx context.Context, hash string, speakerID int64) error {
	if speakerID != Unknown {
		if _, err := r.GetSpeaker(ctx, speakerID); err != nil {
			return err
		}
	}
	res := r.db.WithContext(ctx).Model(&Subclip{}).Where("hash = ?", hash).
		Updates(map[string]any{"speaker_id": speakerID, "updated_at": r.now().UTC()})
	if res.Error != nil {
		return database.FromDatabase(res.Error, "subclip", hash)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("subclip", hash)
	}
	return nil
}

// DeleteSubclip removes a subclip. Deleting a missing hash succeeds.
func (r *Repository) DeleteSubclip(ctx context.Context, hash string) error {
	err := r.db.WithContext(ctx).Where("hash = ?", hash).Delete(&Subclip{}).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return database.FromDatabase(err, "subclip", hash)
	}
	return nil
}

// References lists one speaker's references, most recent first.
func (r *Repository) References(ctx context.Context, speakerID int64, limit int) ([]Reference, error) {
	q := r.db.WithContext(ctx).Model(&Subclip{}).
		Select("hash, speaker_id, recorded_at").
		Where("speaker_id = ?", speakerID).
		Order("recorded_at DESC, hash")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Reference
	if err := q.Scan(&out).Error; err != nil {
		return nil, database.FromDatabase(err, "reference", strconv.FormatInt(speakerID, 10))
	}
	return out, nil
}

// RecentReferences returns up to perSpeaker most recent references for
// every known speaker, ordered by speaker then recency.
func (r *Repository) RecentReferences(ctx context.Context, perSpeaker int) ([]Reference, error) {
	var all []Reference
	err := r.db.WithContext(ctx).Model(&Subclip{}).
		Select("hash, speaker_id, recorded_at").
		Where("speaker_id <> ?", Unknown).
		Order("speaker_id, recorded_at DESC, hash").
		Scan(&all).Error
	if err != nil {
		return nil, database.FromDatabase(err, "reference", "")
	}
	if perSpeaker <= 0 {
		return all, nil
	}
	out := all[:0]
	taken := 0
	for i, ref := range all {
		if i == 0 || ref.SpeakerID != all[i-1].SpeakerID {
			taken = 0
		}
		if taken < perSpeaker {
			out = append(out, ref)
			taken++
		}
	}
	return out, nil
}
