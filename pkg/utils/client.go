package utils

import (
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tb0hdan/ctlog-checker/pkg/configs"
	"github.com/tb0hdan/ctlog-checker/pkg/log"
	"go.uber.org/zap"
)

// GetRetryableClient returns a pooled HTTP client that retries connection
// errors and 5xx responses up to feed.retry_max times.
func GetRetryableClient(config configs.FeedConfig, logger *zap.Logger) *http.Client {
	retryClient := retryablehttp.NewClient()

	pooledTransport := cleanhttp.DefaultPooledTransport()
	pooledTransport.MaxIdleConnsPerHost = 10
	pooledTransport.MaxIdleConns = 100
	pooledTransport.DialContext = (&net.Dialer{
		Timeout:   time.Duration(config.RequestTimeout) * time.Second,
		KeepAlive: time.Duration(config.RequestTimeout/2) * time.Second,
	}).DialContext

	retryClient.HTTPClient = &http.Client{
		Transport: pooledTransport,
		Timeout:   time.Duration(config.RequestTimeout) * time.Second,
	}
	retryClient.RetryMax = config.RetryMax
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	// Return the last response once retries are exhausted
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = log.NewRetryLogger(logger)

	return retryClient.StandardClient()
}
