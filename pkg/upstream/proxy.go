package upstream

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"foresttracker/pkg/respond"
)

// Proxy streams the inbound request to endpoint and the upstream response back, both unmodified
// apart from hop-by-hop headers and the Authorization header, which carries token when one is resolved.
func (c *Client) Proxy(w http.ResponseWriter, r *http.Request, endpoint, token string) {
	c.reverseProxy(endpoint, token, nil).ServeHTTP(w, r)
}

// Stream relays a download. extra headers are added to successful responses only.
func (c *Client) Stream(w http.ResponseWriter, r *http.Request, endpoint, token string, extra http.Header) {
	c.reverseProxy(endpoint, token, extra).ServeHTTP(w, r)
}

func (c *Client) reverseProxy(endpoint, token string, extra http.Header) *httputil.ReverseProxy {
	target, err := url.Parse(endpoint)
	if err != nil {
		target = &url.URL{Path: endpoint}
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = c.base.Scheme
			pr.Out.URL.Host = c.base.Host
			pr.Out.URL.Path = c.base.Path + target.Path
			pr.Out.URL.RawPath = ""
			if target.RawQuery != "" {
				pr.Out.URL.RawQuery = target.RawQuery
			}
			pr.Out.Host = c.base.Host

			if token != "" {
				pr.Out.Header.Set("Authorization", "Bearer "+token)
			}
			c.logger.Info("upstream proxy", "method", pr.In.Method, "path", pr.Out.URL.Path,
				"auth", pr.Out.Header.Get("Authorization") != "")
		},
		Transport: c.http.Transport,
		ModifyResponse: func(resp *http.Response) error {
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil
			}
			for k, vs := range extra {
				resp.Header.Del(k)
				for _, v := range vs {
					resp.Header.Add(k, v)
				}
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			c.logger.Error("proxy error", "path", r.URL.Path, "error", err)
			respond.Error(w, http.StatusInternalServerError, respond.CodeUpstreamUnavailable, "Proxy error")
		},
	}
}
