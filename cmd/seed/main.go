package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/melodiemoment/api/internal/config"
	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/notify"
	"github.com/melodiemoment/api/internal/repository"
	"github.com/melodiemoment/api/internal/service"
)

type seedOrder struct {
	suffix  string
	pricing service.PricingInput
	status  string
	order   models.Order
}

func main() {
	var hashPassword string
	flag.StringVar(&hashPassword, "hash-password", "", "输出 admin.password_hash 用的 bcrypt 哈希后退出")
	flag.Parse()

	if hashPassword != "" {
		hash, err := service.HashPassword(hashPassword)
		if err != nil {
			fmt.Printf("hash failed: %v\n", err)
			return
		}
		fmt.Println(hash)
		return
	}

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	db, err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false)
	if err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	defer func() { _ = models.CloseDB(db) }()

	// 自动迁移
	if err := models.AutoMigrate(db); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	orderRepo := repository.NewOrderRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	campaigns := service.NewCampaignService(campaignRepo, orderRepo, notify.Noop{}, nil)

	// 示例邮件活动
	if existing, err := campaignRepo.GetActiveByTrigger(constants.CampaignTriggerDelivered); err != nil {
		stdLog.Printf("Failed to look up campaigns: %v", err)
	} else if existing != nil {
		stdLog.Printf("Campaign already exists: %s", existing.Name)
	} else {
		campaign, err := campaigns.Create(service.CreateCampaignInput{
			Name:        "Nach der Auslieferung",
			Description: "Bewertung und Empfehlung nach dem Versand des Liedes",
			Trigger:     constants.CampaignTriggerDelivered,
			IsActive:    true,
			Steps: []service.CreateCampaignStepInput{
				{Subject: "Wie gefällt dir das Lied für {{recipient_name}}?", Body: "Hallo {{customer_name}},\n\nwir hoffen, das Lied hat Freude gemacht. Wir freuen uns über eine kurze Bewertung.", DelayDays: 3},
				{Subject: "Schenk Freunden 10 % auf ihr eigenes Lied", Body: "Hallo {{customer_name}},\n\nteile deinen Empfehlungscode und mach jemandem eine Freude.", DelayDays: 14},
			},
		})
		if err != nil {
			stdLog.Printf("Failed to create campaign: %v", err)
		} else {
			stdLog.Printf("Created campaign: %s", campaign.Name)
		}
	}

	// 测试订单，单号均带 TEST 段
	stamp := seedStamp(time.Now())
	fixtures := []seedOrder{
		{
			suffix:  "GEBURTSTAG",
			pricing: service.PricingInput{PackageType: constants.PackagePlus, BumpKaraoke: true},
			status:  constants.OrderStatusPaid,
			order: models.Order{
				RecipientName: "Lena",
				Occasion:      constants.OccasionGeburtstag,
				Relationship:  "Schwester",
				Story:         "Lena und ich sind am Bodensee aufgewachsen und haben jeden Sommer im Segelboot verbracht.",
				Genre:         "pop",
				Mood:          4,
				CustomerName:  "Jonas Weber",
				CustomerEmail: "jonas@example.com",
			},
		},
		{
			suffix:  "HOCHZEIT",
			pricing: service.PricingInput{PackageType: constants.PackagePremium, BumpRush: true, BumpGift: true},
			status:  constants.OrderStatusInProduction,
			order: models.Order{
				RecipientName: "Sarah und Tim",
				Occasion:      constants.OccasionHochzeit,
				Relationship:  "Freunde",
				Story:         "Sarah und Tim heiraten nächsten Samstag, sie haben sich beim Chor kennengelernt.",
				Genre:         "akustik",
				Mood:          5,
				CustomerName:  "Nina Krause",
				CustomerEmail: "nina@example.com",
			},
		},
		{
			suffix:  "JUBILAEUM",
			pricing: service.PricingInput{PackageType: constants.PackageBasis},
			status:  constants.OrderStatusPending,
			order: models.Order{
				RecipientName: "Paul",
				Occasion:      constants.OccasionJubilaeum,
				Story:         "Paul und Anna feiern ihren vierzigsten Hochzeitstag im Garten mit der ganzen Familie.",
				Mood:          3,
				CustomerName:  "Anna Schulz",
				CustomerEmail: "anna@example.com",
			},
		},
	}

	for _, fixture := range fixtures {
		order := fixture.order
		order.OrderNumber = fmt.Sprintf("%s-%s-%s-%s", constants.OrderNumberPrefix, constants.TestOrderNumberPart, stamp, fixture.suffix)
		if !service.IsTestOrderNumber(order.OrderNumber) {
			stdLog.Printf("Skip non-test order number: %s", order.OrderNumber)
			continue
		}
		order.PackageType = fixture.pricing.PackageType
		order.SelectedBundle = constants.BundleNone
		order.BumpKaraoke = fixture.pricing.BumpKaraoke
		order.BumpRush = fixture.pricing.BumpRush
		order.BumpGift = fixture.pricing.BumpGift
		order.BasePrice = service.PackagePrice(fixture.pricing.PackageType)
		order.TotalPrice = service.CalculateTotal(fixture.pricing)
		order.Status = fixture.status
		if err := orderRepo.Create(&order); err != nil {
			stdLog.Printf("Failed to create order %s: %v", order.OrderNumber, err)
			continue
		}
		stdLog.Printf("Created order: %s (%s, %d EUR)", order.OrderNumber, order.Status, order.TotalPrice)
	}

	stdLog.Printf("Seed finished")
}

func seedStamp(at time.Time) string {
	return fmt.Sprintf("%X", at.Unix())
}
