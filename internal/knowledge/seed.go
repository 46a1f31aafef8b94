package knowledge

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/daosail/compass/internal/log"
	"github.com/daosail/compass/internal/roles"
)

// seedNamespace derives stable document ids from seed titles so
// re-running the seeder upserts instead of duplicating.
var seedNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Seeder indexes the built-in knowledge base corpus. It exists so a
// fresh deployment has grounding content before any editorial import.
//
// Safe for concurrent use; IndexAll runs are serialized.
type Seeder struct {
	store  *Store
	logger log.Logger
	mu     sync.Mutex
}

// NewSeeder creates a Seeder.
func NewSeeder(store *Store, logger log.Logger) *Seeder {
	return &Seeder{store: store, logger: logger}
}

// IndexAll upserts every seed document and returns how many succeeded.
// Individual failures are logged and skipped; an error is returned only
// when nothing could be indexed.
func (s *Seeder) IndexAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := seedDocuments()

	indexed := 0
	for _, doc := range docs {
		if err := s.store.Add(ctx, doc); err != nil {
			s.logger.Error("seed document failed", "title", doc.Title, "error", err)
			continue
		}
		indexed++
	}

	s.logger.Info("knowledge base seeded",
		"total", len(docs), "indexed", indexed, "failed", len(docs)-indexed)

	if indexed == 0 {
		return 0, fmt.Errorf("no seed documents indexed")
	}
	return indexed, nil
}

// seedDocuments returns the built-in corpus. Ids are derived from
// titles so the set is stable across runs.
func seedDocuments() []Document {
	docs := []Document{
		{
			Title:      "Точки ветра и курсы относительно ветра",
			Content:    "Курс яхты относительно ветра определяет настройку парусов. Левентик — носом строго против ветра, паруса не работают. Бейдевинд — острый курс под углом около 45 градусов к ветру, паруса выбраны максимально. Галфвинд — ветер в борт, паруса на половине. Бакштаг и фордевинд — полные курсы, паруса потравлены. Переход из бейдевинда одного галса в бейдевинд другого через левентик называется оверштаг.",
			Category:   "sailing_basics",
			Language:   "ru",
			AccessTier: roles.TierPublic,
		},
		{
			Title:      "Points of sail",
			Content:    "A boat's course relative to the wind dictates sail trim. In irons means head to wind with sails luffing. Close-hauled is roughly 45 degrees off the wind with sails sheeted tight. A beam reach puts the wind abeam with sails half eased. Broad reach and run are downwind courses with sails well eased. Turning the bow through the wind from one close-hauled course to the other is tacking.",
			Category:   "sailing_basics",
			Language:   "en",
			AccessTier: roles.TierPublic,
		},
		{
			Title:      "Работа со шкотами на повороте",
			Content:    "При повороте оверштаг стаксель-шкот подветренного борта травится в момент прохождения левентика, наветренный выбирается быстро и в натяг. Гика-шкот остаётся выбранным до завершения поворота. Ошибка новичка — раннее травление, из-за которого лодка теряет ход и зависает в левентике.",
			Category:   "sailing_basics",
			Language:   "ru",
			AccessTier: roles.TierInterested,
		},
		{
			Title:      "Счисление пути и определение места",
			Content:    "Счисление ведётся от последней обсервованной точки с учётом курса, скорости, дрейфа и течения. Место по счислению периодически уточняется обсервациями: по пеленгам береговых ориентиров, по глубинам или по спутниковым системам. Невязка между счислимым и обсервованным местом учитывается при дальнейшей прокладке.",
			Category:   "navigation",
			Language:   "ru",
			AccessTier: roles.TierPassenger,
		},
		{
			Title:      "Reading a nautical chart",
			Content:    "Depths on a chart are referenced to chart datum, usually the lowest astronomical tide. Contour lines group soundings; symbols mark wrecks, rocks and restricted areas. Always cross-check the chart edition date and corrections before relying on charted depths in shallow water.",
			Category:   "navigation",
			Language:   "en",
			AccessTier: roles.TierPublic,
		},
		{
			Title:      "Шкалы ветра и прогноз погоды",
			Content:    "Сила ветра оценивается по шкале Бофорта: до 3 баллов — учебные условия, 4-5 баллов — рабочий диапазон крейсерской яхты, от 6 баллов требуется взятие рифов. Признаки приближения фронта: падение давления, заход ветра, наползающая перистая облачность. Прогноз проверяется минимум из двух независимых источников перед выходом.",
			Category:   "weather",
			Language:   "ru",
			AccessTier: roles.TierPublic,
		},
		{
			Title:      "Squall recognition and response",
			Content:    "A squall line shows as a dark band of cloud with a hard lower edge, often with visible rain beneath. Expect a sharp gust and a wind shift as it passes. Depower early: ease sheets, bear away or heave to, and get crew weight low before the gust arrives rather than after.",
			Category:   "weather",
			Language:   "en",
			AccessTier: roles.TierInterested,
		},
		{
			Title:      "Стоячий и бегучий такелаж",
			Content:    "Стоячий такелаж — ванты и штаги, удерживающие мачту, — регулируется на берегу и контролируется на износ. Бегучий такелаж — фалы, шкоты, оттяжки — работает в движении. Перед выходом проверяются сплесни, карабины и клетнёвка, потёртый фал меняется до выхода, а не после обрыва.",
			Category:   "equipment",
			Language:   "ru",
			AccessTier: roles.TierPassenger,
		},
		{
			Title:      "Winch handling and care",
			Content:    "Load a winch with three to four wraps clockwise, tail before grinding, and never let fingers ride inside the wraps. An override is cleared by easing load onto another line first. Service schedule: strip, clean and regrease pawls and bearings at least once a season.",
			Category:   "equipment",
			Language:   "en",
			AccessTier: roles.TierPublic,
		},
		{
			Title:      "Действия при человеке за бортом",
			Content:    "Немедленно: команда «Человек за бортом», сброс спасательного круга, назначение наблюдателя, не теряющего пострадавшего из виду. Манёвр возврата — быстрая остановка с приведением к ветру или петля Вильямсона под мотором. Подъём пострадавшего планируется с подветренного борта с заглушенным винтом.",
			Category:   "safety",
			Language:   "ru",
			AccessTier: roles.TierSailor,
		},
		{
			Title:      "Lifejacket and tether policy",
			Content:    "Lifejackets are worn at night, in fog, when reefed, and always by non-swimmers. Tethers clip to jackstays or hard points, never to lifelines. The skipper sets the policy before departure and enforces it uniformly; a rule that bends under good conditions fails under bad ones.",
			Category:   "safety",
			Language:   "en",
			AccessTier: roles.TierSailor,
		},
		{
			Title:      "Распределение ролей экипажа",
			Content:    "Перед выходом шкипер распределяет роли: рулевой, шкотовые, баковый, наблюдатель. Каждый манёвр проговаривается заранее: команда, подтверждение, исполнение, доклад. Вахтенное расписание на переходе строится так, чтобы на палубе всегда был человек, способный самостоятельно нести вахту.",
			Category:   "crew_management",
			Language:   "ru",
			AccessTier: roles.TierSailor,
		},
		{
			Title:      "Briefing an inexperienced crew",
			Content:    "Keep the first briefing short and physical: where to sit, what not to touch, how to move across the boat, where lifejackets are stowed. Assign each newcomer one simple task so they are occupied and learning. Save sail theory for the second day.",
			Category:   "crew_management",
			Language:   "en",
			AccessTier: roles.TierSkipper,
		},
		{
			Title:      "Аварийное управление при отказе руля",
			Content:    "При отказе рулевого устройства сначала проверяется румпель аварийного привода. Если руль потерян полностью, курс удерживается балансировкой парусов: грот приводит, стаксель уваливает. Плавучий якорь или ведро на браге с кормы дают дополнительное плечо для управления.",
			Category:   "emergency",
			Language:   "ru",
			AccessTier: roles.TierSkipper,
		},
		{
			Title:      "Flooding response priorities",
			Content:    "On discovering water below: find the source before starting the pumps log, taste for salt, check through-hulls, stuffing box and hose clamps first. Wooden plugs tied to each seacock save minutes. Only after the ingress is slowed do you prioritize pumping and a mayday decision.",
			Category:   "emergency",
			Language:   "en",
			AccessTier: roles.TierSailor,
		},
		{
			Title:      "Старт гонки: линия и тайминг",
			Content:    "Стартовая линия почти никогда не перпендикулярна ветру, поэтому один из её концов выгоднее. Выгодный конец определяется пеленгом на ветер с линии. За две минуты до сигнала яхта должна иметь чистую позицию с возможностью ускориться, подход на скорости важнее позиции у самой линии.",
			Category:   "racing",
			Language:   "ru",
			AccessTier: roles.TierSkipper,
		},
		{
			Title:      "Basic racing right of way",
			Content:    "Port gives way to starboard; windward gives way to leeward; the boat astern keeps clear of the boat ahead. At marks, an inside boat with an overlap at the zone is entitled to room. Know these four rules cold before entering any start line.",
			Category:   "racing",
			Language:   "en",
			AccessTier: roles.TierPassenger,
		},
	}

	for i := range docs {
		docs[i].ID = uuid.NewSHA1(seedNamespace, []byte(docs[i].Title))
	}
	return docs
}
