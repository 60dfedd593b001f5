package audit

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/insightdeck/insightdeck/internal/policycache"
)

// Writer applies audit jobs to the database. Used by the worker and by
// the in-process recorder when no broker is configured.
type Writer struct {
	db       *gorm.DB
	policies *policycache.Cache
}

func NewWriter(db *gorm.DB, policies *policycache.Cache) *Writer {
	return &Writer{db: db, policies: policies}
}

func (w *Writer) Apply(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindChartHistory:
		if job.ChartHistory == nil {
			return fmt.Errorf("chart_history job without payload")
		}
		return w.db.WithContext(ctx).Create(job.ChartHistory).Error
	case KindGeneratedContent:
		if job.GeneratedContent == nil {
			return fmt.Errorf("generated_content job without payload")
		}
		return w.db.WithContext(ctx).Create(job.GeneratedContent).Error
	case KindPolicyUpsert:
		if job.Policy == nil {
			return fmt.Errorf("policy_upsert job without payload")
		}
		w.policies.Put(ctx, job.Policy.Region, job.Policy.Category, job.Policy.Content, job.Policy.DataContext)
		return nil
	default:
		return fmt.Errorf("unknown audit job kind %q", job.Kind)
	}
}

// Recorder is the handler-facing facade. Record never returns an error:
// persistence failure must not change the response.
type Recorder interface {
	Record(ctx context.Context, job Job)
}

// AsyncRecorder hands jobs to the broker for the worker to apply.
type AsyncRecorder struct {
	pub *Publisher
	log *logrus.Entry
}

func NewAsyncRecorder(pub *Publisher) *AsyncRecorder {
	return &AsyncRecorder{pub: pub, log: logrus.WithField("component", "audit")}
}

func (r *AsyncRecorder) Record(ctx context.Context, job Job) {
	if err := r.pub.Publish(ctx, job); err != nil {
		r.log.WithError(err).WithField("kind", job.Kind).Warn("audit publish failed")
	}
}

// DirectRecorder applies jobs inline, still best-effort.
type DirectRecorder struct {
	w   *Writer
	log *logrus.Entry
}

func NewDirectRecorder(w *Writer) *DirectRecorder {
	return &DirectRecorder{w: w, log: logrus.WithField("component", "audit")}
}

func (r *DirectRecorder) Record(ctx context.Context, job Job) {
	if err := r.w.Apply(ctx, job); err != nil {
		r.log.WithError(err).WithField("kind", job.Kind).Warn("audit write failed")
	}
}
