package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/SergeiKhy/offer-tracker/internal/repository"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount     = 3    // Количество воркеров
	defaultChannelBuffer   = 1000 // Размер буфера канала
	maxPostbackAttempts    = 3    // Максимальное количество попыток доставки
	defaultPostbackTimeout = 5 * time.Second
)

// ErrPostbackQueueFull событие отброшено, буфер заполнен
var ErrPostbackQueueFull = errors.New("буфер постбэков заполнен")

// PostbackSender доставляет постбэк по готовому URL
type PostbackSender interface {
	Send(ctx context.Context, target string) error
}

// PostbackDispatcher пул воркеров, уведомляющий площадку о новой конверсии
type PostbackDispatcher interface {
	PostbackQueue
	Start()
	Stop()
	Stats() DispatcherStats
}

// DispatcherStats статистика канала worker pool
type DispatcherStats struct {
	BufferSize  int `json:"buffer_size"`  // Общая ёмкость канала
	BufferUsed  int `json:"buffer_used"`  // Текущее использование
	WorkerCount int `json:"worker_count"` // Количество воркеров
}

type postbackDispatcher struct {
	propertyRepo repository.PropertyRepository
	sender       PostbackSender
	logger       *zap.Logger
	events       chan *models.PostbackEvent
	workerCount  int
	timeout      time.Duration
	backoff      time.Duration
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewPostbackDispatcher создаёт диспетчер. Воркеры стартуют в Start.
func NewPostbackDispatcher(
	propertyRepo repository.PropertyRepository,
	sender PostbackSender,
	timeout time.Duration,
	logger *zap.Logger,
) PostbackDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultPostbackTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &postbackDispatcher{
		propertyRepo: propertyRepo,
		sender:       sender,
		logger:       logger,
		events:       make(chan *models.PostbackEvent, defaultChannelBuffer),
		workerCount:  defaultWorkerCount,
		timeout:      timeout,
		backoff:      100 * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start запускает worker pool
func (d *postbackDispatcher) Start() {
	d.logger.Info("Starting postback workers", zap.Int("count", d.workerCount))

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop останавливает воркеров и ждёт их завершения.
// Недоставленные события из буфера теряются.
func (d *postbackDispatcher) Stop() {
	d.logger.Info("Stopping postback dispatcher...")
	d.cancel()
	d.wg.Wait()
	d.logger.Info("Postback dispatcher stopped", zap.Int("dropped", len(d.events)))
}

func (d *postbackDispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug("Postback worker started", zap.Int("id", id))

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug("Postback worker stopped", zap.Int("id", id))
			return

		case event := <-d.events:
			d.deliver(event)
		}
	}
}

// deliver находит postback URL площадки и отправляет его с ретраями
func (d *postbackDispatcher) deliver(event *models.PostbackEvent) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout*maxPostbackAttempts)
	defer cancel()

	property, err := d.propertyRepo.GetByID(ctx, event.PropertyID)
	if err != nil {
		d.logger.Warn("Failed to load property for postback",
			zap.String("property_id", event.PropertyID),
			zap.Error(err),
		)
		return
	}

	if property.PostbackURL == nil || *property.PostbackURL == "" {
		return
	}

	target, err := BuildPostbackURL(*property.PostbackURL, event)
	if err != nil {
		d.logger.Warn("Invalid postback URL",
			zap.String("property_id", event.PropertyID),
			zap.Error(err),
		)
		return
	}

	for i := 0; i < maxPostbackAttempts; i++ {
		attemptCtx, attemptCancel := context.WithTimeout(ctx, d.timeout)
		err = d.sender.Send(attemptCtx, target)
		attemptCancel()
		if err == nil {
			return
		}

		if i < maxPostbackAttempts-1 {
			d.logger.Debug("Retrying postback",
				zap.String("conversion_id", event.ConversionID),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(i+1) * d.backoff):
			}
		}
	}

	d.logger.Error("Postback delivery failed after all attempts",
		zap.String("conversion_id", event.ConversionID),
		zap.String("property_id", event.PropertyID),
		zap.Error(err),
	)
}

// Enqueue неблокирующая постановка в очередь
func (d *postbackDispatcher) Enqueue(ctx context.Context, event *models.PostbackEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case d.events <- event:
		return nil
	default:
		d.logger.Warn("Postback buffer is full, event dropped",
			zap.String("conversion_id", event.ConversionID),
		)
		return ErrPostbackQueueFull
	}
}

func (d *postbackDispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		BufferSize:  cap(d.events),
		BufferUsed:  len(d.events),
		WorkerCount: d.workerCount,
	}
}

// BuildPostbackURL дописывает параметры конверсии к URL площадки
func BuildPostbackURL(base string, event *models.PostbackEvent) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported postback scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Set("click_user", event.UserID)
	q.Set("offer_id", event.OfferID)
	q.Set("property_id", event.PropertyID)
	q.Set("level", strconv.Itoa(event.Level))
	q.Set("conversion_id", event.ConversionID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// HTTPPostbackSender GET-запрос, успех только на 2xx
type HTTPPostbackSender struct {
	Client *http.Client
}

func NewHTTPPostbackSender() *HTTPPostbackSender {
	return &HTTPPostbackSender{Client: &http.Client{}}
}

func (s *HTTPPostbackSender) Send(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("postback returned status %d", resp.StatusCode)
	}
	return nil
}
