package bureau

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/poolfund/lending-service/internal/config"
)

// Client handles integration with the external credit bureau
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new bureau client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.BureauURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// buildSOAPRequest creates a SOAP request reporting a repayment outcome
func (c *Client) buildSOAPRequest(borrower string, score int, onTime bool) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
		<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
			<soap12:Body>
				<ReportOutcome xmlns="http://bureau.poolfund.local/">
					<Borrower>%s</Borrower>
					<Score>%d</Score>
					<OnTime>%t</OnTime>
					<ReportedAt>%s</ReportedAt>
				</ReportOutcome>
			</soap12:Body>
		</soap12:Envelope>`, borrower, score, onTime, time.Now().Format("2006-01-02T15:04:05"))
}

// sendRequest sends the SOAP request to the bureau
func (c *Client) sendRequest(soapRequest string) ([]byte, error) {
	req, err := http.NewRequest("POST", c.url, bytes.NewBuffer([]byte(soapRequest)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://bureau.poolfund.local/ReportOutcome")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	c.log.Debugf("Bureau XML response: %s", string(body))

	return body, nil
}

// parseXMLResponse checks the bureau's acknowledgement
func (c *Client) parseXMLResponse(rawBody []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return fmt.Errorf("failed to parse XML: %v", err)
	}

	ack := doc.FindElement("//ReportOutcomeResponse/Accepted")
	if ack == nil {
		return fmt.Errorf("no acknowledgement found in XML")
	}
	if ack.Text() != "true" {
		return fmt.Errorf("bureau rejected the report: %s", ack.Text())
	}
	return nil
}

// ReportOutcome reports a repayment outcome to the bureau
func (c *Client) ReportOutcome(borrower string, score int, onTime bool) error {
	soapRequest := c.buildSOAPRequest(borrower, score, onTime)
	body, err := c.sendRequest(soapRequest)
	if err != nil {
		return err
	}

	if err := c.parseXMLResponse(body); err != nil {
		return err
	}

	c.log.Infof("Reported outcome for %s: score %d, on time %t", borrower, score, onTime)
	return nil
}
