package dispatch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/701789262a/backend-dailychat/httpclient"
)

// Job is one clip waiting to be placed on a node.
type Job struct {
	ID        string
	Clip      []byte
	FileName  string
	Timestamp string
	UserID    string
}

// Forwarder hands a job to the node at address.
type Forwarder interface {
	Forward(ctx context.Context, address string, job Job) error
}

// HTTPForwarder posts jobs to the node's POST /job endpoint.
type HTTPForwarder struct {
	client *httpclient.Client
	port   int
}

// NewHTTPForwarder targets http://<address>:<port>/job.
func NewHTTPForwarder(port int, timeout time.Duration) (*HTTPForwarder, error) {
	client, err := httpclient.New(httpclient.Config{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &HTTPForwarder{client: client, port: port}, nil
}

func (f *HTTPForwarder) Forward(ctx context.Context, address string, job Job) error {
	fileName := job.FileName
	if fileName == "" {
		fileName = "clip.wav"
	}
	url := fmt.Sprintf("http://%s/job", net.JoinHostPort(address, strconv.Itoa(f.port)))
	_, err := f.client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    url,
		Headers: map[string]string{"X-Request-Id": job.ID},
		Body: &httpclient.MultipartBody{
			Fields: map[string]string{
				"timestamp": job.Timestamp,
				"user_id":   job.UserID,
				"job_id":    job.ID,
			},
			Files: []httpclient.FileField{{FieldName: "clip", FileName: fileName, Data: job.Clip}},
		},
	})
	if err != nil {
		return fmt.Errorf("forward to %s: %w", address, err)
	}
	return nil
}
