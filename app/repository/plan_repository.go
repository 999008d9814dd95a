package repository

import (
	"github.com/ripple-social/ripple/app/models"
	"gorm.io/gorm"
)

type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a plan repository backed by GORM.
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) Create(plan *models.Plan) error {
	return r.db.Create(plan).Error
}

func (r *planRepository) GetByID(id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepository) GetByName(name string) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.Where("name = ?", name).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepository) GetActive() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.Where("is_active = ?", true).Order("tier ASC, id ASC").Find(&plans).Error
	return plans, err
}

func (r *planRepository) Update(plan *models.Plan) error {
	return r.db.Save(plan).Error
}

func (r *planRepository) SetProviderPlanRef(planID uint, cycle, ref string) error {
	column := "provider_plan_ref"
	if cycle == models.BillingCycleYearly {
		column = "provider_plan_ref_yearly"
	}
	return r.db.Model(&models.Plan{}).Where("id = ?", planID).Update(column, ref).Error
}

func (r *planRepository) ClearProviderPlanRef(planID uint, cycle string) error {
	return r.SetProviderPlanRef(planID, cycle, "")
}
