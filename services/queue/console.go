package queuesvc

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/moffermann/school-attendance/core"
)

// consoleService prints delivery jobs to stdout; used in DEV mode where no
// real delivery workers run.
type consoleService struct {
	disableOutput bool

	mu           sync.Mutex
	enqueuedJobs []core.DeliveryJob
}

var _ core.DeliveryQueue = (*consoleService)(nil)

func NewConsoleService() core.DeliveryQueue {
	return &consoleService{}
}

func (svc *consoleService) Enqueue(_ context.Context, job core.DeliveryJob) error {
	svc.mu.Lock()
	svc.enqueuedJobs = append(svc.enqueuedJobs, job)
	svc.mu.Unlock()

	if !svc.disableOutput {
		body := new(strings.Builder)
		_, _ = fmt.Fprintf(body, "DeliveryJob: %s\r\n", job.JobType)
		_, _ = fmt.Fprintf(body, "Notification: %s\r\n", job.NotificationID)
		_, _ = fmt.Fprintf(body, "To: %s\r\n", job.Recipient)
		_, _ = fmt.Fprintf(body, "Template: %s\r\n", job.Template)
		if len(job.Payload) > 0 {
			_, _ = fmt.Fprintf(body, "Payload: %s\r\n", job.Payload)
		}
		log.Println(body.String())
	}
	return nil
}

// ConsoleServiceMock records jobs without output and can simulate an
// unreachable queue.
type ConsoleServiceMock struct {
	consoleService

	// EnqueueErr, when set, is returned by every Enqueue call.
	EnqueueErr error
}

var _ core.DeliveryQueue = (*ConsoleServiceMock)(nil)

func NewConsoleServiceMock() *ConsoleServiceMock {
	return &ConsoleServiceMock{consoleService: consoleService{disableOutput: true}}
}

func (svc *ConsoleServiceMock) Enqueue(ctx context.Context, job core.DeliveryJob) error {
	if svc.EnqueueErr != nil {
		return svc.EnqueueErr
	}
	return svc.consoleService.Enqueue(ctx, job)
}

// EnqueuedJobs returns the jobs recorded so far.
func (svc *ConsoleServiceMock) EnqueuedJobs() []core.DeliveryJob {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	jobs := make([]core.DeliveryJob, len(svc.enqueuedJobs))
	copy(jobs, svc.enqueuedJobs)
	return jobs
}
