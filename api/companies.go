package api

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/domain"
	"github.com/sicko7947/hrflow/validation"
)

// CompanyResponse summarises a stored company
type CompanyResponse struct {
	CompanyID     string             `json:"company_id"`
	Name          string             `json:"name"`
	Industry      domain.Industry    `json:"industry"`
	Size          domain.CompanySize `json:"size"`
	EmployeeCount int                `json:"employee_count"`
	CreatedAt     time.Time          `json:"created_at"`
}

func companyResponse(c *domain.Company) CompanyResponse {
	return CompanyResponse{
		CompanyID:     c.CompanyID,
		Name:          c.Name,
		Industry:      c.Industry,
		Size:          c.Size,
		EmployeeCount: c.EmployeeCount,
		CreatedAt:     c.CreatedAt,
	}
}

// handleCreateCompany validates the profile, derives industry and size, and
// stores it for CompanyTTL
func (s *Server) handleCreateCompany(c fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return badRequest("Invalid request body")
	}
	if err := validation.Validate(validation.Company, json.RawMessage(body)); err != nil {
		return err
	}

	var company domain.Company
	if err := json.Unmarshal(body, &company); err != nil {
		return badRequest("Invalid request body")
	}
	company.CompanyID = ""
	company.CreatedAt = time.Time{}
	company.Normalize(s.now())

	key := hrflow.CompanyKey(company.CompanyID)
	if err := hrflow.SetJSON(c.Context(), s.store, key, company, s.config.CompanyTTL); err != nil {
		hrflow.LogPersistenceError(s.logger, key, "save", err)
		return err
	}

	hrflow.LogCompanyCreated(s.logger, company.CompanyID, company.Name)

	return c.Status(fiber.StatusCreated).JSON(companyResponse(&company))
}

func (s *Server) handleGetCompany(c fiber.Ctx) error {
	company, err := s.loadCompany(c, c.Params("companyId"))
	if err != nil {
		return err
	}
	return c.JSON(companyResponse(company))
}

func (s *Server) handleDeleteCompany(c fiber.Ctx) error {
	companyID := c.Params("companyId")
	key := hrflow.CompanyKey(companyID)

	exists, err := s.store.Exists(c.Context(), key)
	if err != nil {
		return err
	}
	if !exists {
		return hrflow.ErrCompanyNotFound
	}
	if err := s.store.Delete(c.Context(), key); err != nil {
		return err
	}

	hrflow.LogCompanyDeleted(s.logger, companyID)

	return c.JSON(fiber.Map{"status": "deleted", "company_id": companyID})
}

func (s *Server) loadCompany(c fiber.Ctx, companyID string) (*domain.Company, error) {
	var company domain.Company
	err := hrflow.GetJSON(c.Context(), s.store, hrflow.CompanyKey(companyID), &company)
	if errors.Is(err, hrflow.ErrKeyNotFound) {
		return nil, hrflow.ErrCompanyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &company, nil
}
