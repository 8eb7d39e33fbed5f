package arbor

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"arborwatch/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/arbor")

var ErrLoginFailed = fmt.Errorf("Failed to login to your guardian account.")

// ErrMaintenance is returned when the portal is showing its maintenance
// page. Callers should treat it as "try again later", not as a fault.
var ErrMaintenance = fmt.Errorf("the portal is in maintenance mode")

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
}

type ClientOptions struct {
	// e.g. https://the-castle-school.uk.arbor.sc
	BaseUrl string
	// contact address advertised in request headers so the school can
	// reach whoever runs the watcher
	Contact string
}

// NormalizeBaseUrl maps a pasted .arbor.education host (reset links and
// the like) to the .arbor.sc tenant host the guardian portal lives on.
func NormalizeBaseUrl(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.Contains(base, ".arbor.education") {
		parsed, err := url.Parse(base)
		if err != nil {
			return base
		}
		host := strings.Replace(parsed.Hostname(), ".arbor.education", ".arbor.sc", 1)
		return fmt.Sprintf("https://%s", host)
	}
	return base
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(NormalizeBaseUrl(opts.BaseUrl))
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(baseUrl.String())
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "ArborWatcher/1.0 (+"+opts.Contact+")")
	client.SetHeader("accept-language", "en-GB,en;q=0.9")
	if opts.Contact != "" {
		client.SetHeader("x-arborwatcher-contact", opts.Contact)
	}
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(
		baseUrl.Hostname(),
		"login.arbor.sc",
	))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/arbor/http")

	c := &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}
	return c, nil
}

// isMaintenance reports whether a page body is the Arbor maintenance
// notice rather than real portal content.
func isMaintenance(doc *goquery.Document) bool {
	body := strings.ToLower(doc.Find("body").Text())
	return strings.Contains(body, "maintenance mode is turned on") ||
		strings.Contains(body, "undergoing maintenance")
}

func (c *Client) getDocument(ctx context.Context, path string) (*goquery.Document, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, err
	}
	if isMaintenance(doc) {
		return nil, ErrMaintenance
	}
	return doc, nil
}

type Credentials struct {
	Email    string
	Password string
	// optional date of birth verification step, dd/mm/yyyy
	ChildDOB string
}

// LoginGuardian reaches a login page (trying the known login paths in
// order), submits the credential form and, when asked, the child date
// of birth verification.
func (c *Client) LoginGuardian(ctx context.Context, creds Credentials) error {
	ctx, span := tracer.Start(ctx, "client:LoginGuardian")
	defer span.End()

	candidates := []string{"/", "/auth/login", "/login"}

	var doc *goquery.Document
	var loginPath string
	var err error
	for _, path := range candidates {
		doc, err = c.getDocument(ctx, path)
		if err == ErrMaintenance {
			span.SetStatus(codes.Error, "maintenance mode")
			return err
		}
		if err != nil {
			continue
		}
		if doc.Find("input[type=email], input[name=email], input[autocomplete=username]").Length() > 0 {
			loginPath = path
			break
		}
		doc = nil
	}
	if doc == nil {
		span.SetStatus(codes.Error, "could not reach a login page")
		return fmt.Errorf("could not reach the login page, check the portal base url")
	}

	form := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("input[type=password], input[name=password]").Length() > 0
	}).First()
	if form.Length() == 0 {
		span.SetStatus(codes.Error, "no credential form on login page")
		return ErrLoginFailed
	}

	action := form.AttrOr("action", loginPath)
	values := url.Values{}
	form.Find("input[type=hidden]").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name != "" {
			values.Set(name, s.AttrOr("value", ""))
		}
	})
	values.Set(inputName(form, "input[type=email], input[name=email], input[autocomplete=username]", "email"), creds.Email)
	values.Set(inputName(form, "input[type=password], input[autocomplete=current-password]", "password"), creds.Password)

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(values).
		Post(action)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit credentials")
		return err
	}
	landed, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return err
	}
	if isMaintenance(landed) {
		return ErrMaintenance
	}

	// some tenants ask for a child date of birth before entering the
	// guardian shell
	dobField := landed.Find("input[name=dob], input[name=date_of_birth]")
	if dobField.Length() > 0 {
		if creds.ChildDOB == "" {
			span.SetStatus(codes.Error, "dob verification requested but not configured")
			return ErrLoginFailed
		}
		dobForm := dobField.Closest("form")
		dobValues := url.Values{}
		dobForm.Find("input[type=hidden]").Each(func(_ int, s *goquery.Selection) {
			name := s.AttrOr("name", "")
			if name != "" {
				dobValues.Set(name, s.AttrOr("value", ""))
			}
		})
		dobValues.Set(dobField.AttrOr("name", "dob"), creds.ChildDOB)
		res, err = c.Http.R().
			SetContext(ctx).
			SetFormDataFromValues(dobValues).
			Post(dobForm.AttrOr("action", action))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to submit dob verification")
			return err
		}
		landed, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
		if err != nil {
			return err
		}
	}

	// a landed page still showing a password field means the portal
	// bounced us back to the form
	if landed.Find("input[type=password]").Length() > 0 {
		span.SetStatus(codes.Error, "credentials rejected")
		return ErrLoginFailed
	}

	return nil
}

func inputName(form *goquery.Selection, selector, fallback string) string {
	name := form.Find(selector).First().AttrOr("name", "")
	if name == "" {
		return fallback
	}
	return name
}
