package kernel

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func init() {
	register("curl", CapHTTP, cmdCurl)
	register("wget", CapHTTP, cmdWget)
}

func cmdCurl(c *Context, args []string) Result {
	if c.HTTP == nil {
		return fail(1, "curl: no http capability bound")
	}
	method := ""
	headers := http.Header{}
	var body string
	hasBody := false
	outFile := ""
	silent := false
	follow := false
	headOnly := false
	includeHeaders := false
	basicAuth := ""
	var urlStr string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-X" && i+1 < len(args):
			i++
			method = args[i]
		case a == "-H" && i+1 < len(args):
			i++
			if name, value, okH := strings.Cut(args[i], ":"); okH {
				headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
			}
		case (a == "-d" || a == "--data" || a == "--data-raw") && i+1 < len(args):
			i++
			body = args[i]
			hasBody = true
		case a == "-o" && i+1 < len(args):
			i++
			outFile = args[i]
		case a == "-s" || a == "--silent":
			silent = true
		case a == "-L" || a == "--location":
			follow = true
		case a == "-I" || a == "--head":
			headOnly = true
		case a == "-i" || a == "--include":
			includeHeaders = true
		case a == "-u" && i+1 < len(args):
			i++
			basicAuth = args[i]
		case strings.HasPrefix(a, "-"):
			return fail(2, "curl: unsupported option "+a)
		default:
			urlStr = a
		}
	}
	if urlStr == "" {
		return fail(2, "curl: no URL specified")
	}
	if method == "" {
		if headOnly {
			method = "HEAD"
		} else if hasBody {
			method = "POST"
		} else {
			method = "GET"
		}
	}

	var reqBody io.Reader
	if hasBody {
		reqBody = strings.NewReader(body)
		if headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	req, err := http.NewRequestWithContext(c.context(), method, urlStr, reqBody)
	if err != nil {
		return fail(3, "curl: "+err.Error())
	}
	req.Header = headers
	if basicAuth != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(basicAuth)))
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fail(6, "curl: "+err.Error())
	}
	defer resp.Body.Close()
	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(6, "curl: "+err.Error())
	}

	var sb strings.Builder
	if headOnly || includeHeaders {
		fmt.Fprintf(&sb, "%s %s\n", resp.Proto, resp.Status)
		for name, vals := range resp.Header {
			for _, v := range vals {
				fmt.Fprintf(&sb, "%s: %s\n", name, v)
			}
		}
		sb.WriteString("\n")
	}
	if !headOnly {
		sb.WriteString(string(respData))
	}

	stderr := ""
	if !silent && resp.StatusCode >= 400 {
		stderr = fmt.Sprintf("curl: (22) The requested URL returned error: %d\n", resp.StatusCode)
	}
	exit := 0
	// 4xx/5xx answers fail; a 3xx answer fails only without -L (following
	// redirects is left to the host client)
	if resp.StatusCode >= 400 || (resp.StatusCode >= 300 && resp.StatusCode < 400 && !follow) {
		exit = 1
	}

	if outFile != "" {
		if c.FS == nil {
			return fail(1, "curl: -o requires a filesystem")
		}
		if err := c.FS.Write(outFile, []byte(sb.String())); err != nil {
			return fail(1, "curl: "+err.Error())
		}
		return Result{Stderr: stderr, ExitCode: exit}
	}
	return Result{Stdout: sb.String(), Stderr: stderr, ExitCode: exit}
}

func cmdWget(c *Context, args []string) Result {
	if c.HTTP == nil {
		return fail(1, "wget: no http capability bound")
	}
	outFile := ""
	quiet := false
	serverResponse := false
	headers := http.Header{}
	var urlStr string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-O" && i+1 < len(args):
			i++
			outFile = args[i]
		case a == "-q":
			quiet = true
		case a == "-S":
			serverResponse = true
		case strings.HasPrefix(a, "--header=") :
			if name, value, okH := strings.Cut(a[len("--header="):], ":"); okH {
				headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
			}
		case a == "--header" && i+1 < len(args):
			i++
			if name, value, okH := strings.Cut(args[i], ":"); okH {
				headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
			}
		case a == "--no-check-certificate":
			// accepted and ignored: certificate policy belongs to the host
		case strings.HasPrefix(a, "-"):
			return fail(2, "wget: unsupported option "+a)
		default:
			urlStr = a
		}
	}
	if urlStr == "" {
		return fail(2, "wget: missing URL")
	}
	req, err := http.NewRequestWithContext(c.context(), "GET", urlStr, nil)
	if err != nil {
		return fail(1, "wget: "+err.Error())
	}
	req.Header = headers
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fail(4, "wget: "+err.Error())
	}
	defer resp.Body.Close()
	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(4, "wget: "+err.Error())
	}

	stderr := ""
	if serverResponse && !quiet {
		var hb strings.Builder
		fmt.Fprintf(&hb, "  %s %s\n", resp.Proto, resp.Status)
		for name, vals := range resp.Header {
			for _, v := range vals {
				fmt.Fprintf(&hb, "  %s: %s\n", name, v)
			}
		}
		stderr = hb.String()
	}
	if resp.StatusCode >= 400 {
		if !quiet {
			stderr += fmt.Sprintf("wget: server returned error: %s\n", resp.Status)
		}
		return Result{Stderr: stderr, ExitCode: 8}
	}

	if outFile == "-" {
		return Result{Stdout: string(respData), Stderr: stderr}
	}
	if outFile == "" {
		// default file name from the URL path
		outFile = urlStr[strings.LastIndexByte(urlStr, '/')+1:]
		if outFile == "" {
			outFile = "index.html"
		}
	}
	if c.FS == nil {
		return Result{Stdout: string(respData), Stderr: stderr}
	}
	if err := c.FS.Write(outFile, respData); err != nil {
		return fail(3, "wget: "+err.Error())
	}
	return Result{Stderr: stderr}
}
