package email

import (
	"sync"
	"time"
)

const maxRetries = 3

// Queue sends mail on background workers so request handlers never wait on
// SMTP. It satisfies the same Send* methods as Service.
type Queue struct {
	service *Service
	queue   chan *queuedEmail
	done    chan struct{}
	wg      sync.WaitGroup
	backoff time.Duration
}

type queuedEmail struct {
	to           []string
	subject      string
	templateName string
	data         interface{}
	retries      int
}

// NewQueue starts workers goroutines that drain the queue.
func NewQueue(service *Service, workers int) *Queue {
	q := &Queue{
		service: service,
		queue:   make(chan *queuedEmail, 1000),
		done:    make(chan struct{}),
		backoff: 2 * time.Second,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case email := <-q.queue:
			q.deliver(email)
		case <-q.done:
			return
		}
	}
}

func (q *Queue) deliver(email *queuedEmail) {
	for {
		err := q.service.SendWithTemplate(email.to, email.subject, email.templateName, email.data)
		if err == nil {
			return
		}
		if email.retries >= maxRetries {
			q.service.log.Error("email dropped after retries", "template", email.templateName, "error", err)
			return
		}
		email.retries++
		q.service.log.Warn("email send failed, retrying", "template", email.templateName, "attempt", email.retries, "error", err)

		select {
		case <-time.After(q.backoff * time.Duration(email.retries)):
		case <-q.done:
			return
		}
	}
}

// Enqueue adds an email to the queue, dropping it when the queue is full.
func (q *Queue) Enqueue(to []string, subject, templateName string, data interface{}) {
	select {
	case q.queue <- &queuedEmail{to: to, subject: subject, templateName: templateName, data: data}:
	default:
		q.service.log.Warn("email queue full, message dropped", "template", templateName)
	}
}

func (q *Queue) SendInvite(to, workspaceName, inviterName, role, link string) error {
	q.Enqueue([]string{to}, "You're invited to join "+workspaceName, "invitation", InviteData{
		WorkspaceName: workspaceName,
		InvitedBy:     inviterName,
		Role:          role,
		InviteURL:     link,
	})
	return nil
}

func (q *Queue) SendStaleTimer(to, userName, taskTitle string, startedAt time.Time) error {
	q.Enqueue([]string{to}, "Your timer on "+taskTitle+" is still running", "stale_timer", StaleTimerData{
		UserName:  userName,
		TaskTitle: taskTitle,
		StartedAt: startedAt.UTC().Format("Jan 2, 15:04 MST"),
		Hours:     formatHours(time.Since(startedAt)),
	})
	return nil
}

// Stop stops the workers and waits for the one in flight to return.
func (q *Queue) Stop() {
	close(q.done)
	q.wg.Wait()
}
