package transform

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"go.plantopia.dev/etl/frame"
)

// ErrTableNotFound is returned when the plan needs a dimensional table that
// was not staged.
var ErrTableNotFound = xerrors.New("table not found")

// Tables maps logical table names to tables.
type Tables map[string]*frame.Table

// Names returns the table names in no particular order.
func (ts Tables) Names() []string {
	return lo.Keys(ts)
}

func (ts Tables) get(name string) (*frame.Table, error) {
	t, ok := ts[name]
	if !ok {
		return nil, xerrors.Errorf("%s: %w", name, ErrTableNotFound)
	}
	return t, nil
}

// DimensionalName is the name a source table is staged under before merging.
func DimensionalName(source string) string {
	return "dim_" + source
}

// Outputs lists the final tables in build order.
var Outputs = []string{
	"dim_admins",
	"dim_users",
	"dim_my_plants",
	"dim_planting_histories",
	"dim_watering_histories",
	"dim_customize_watering_reminders",
	"fact_user_activities",
	"dim_plants",
	"dim_watering_reminders",
	"dim_plant_faqs",
	"dim_plant_instructions",
	"dim_plant_characteristics",
	"fact_plants_data",
}

// Run cleanses the dimensional tables and builds every table in Outputs.
// The input is not modified.
func Run(ctx context.Context, staged Tables, now time.Time) (Tables, error) {
	in := make(Tables, len(staged))
	cl := ForDimension(now)
	for name, t := range staged {
		in[name], _ = cl.Cleanse(ctx, t)
	}

	p := &planner{in: in, out: Tables{}, now: now}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"users", p.userDimension},
		{"admins", p.admins},
		{"plants", p.plantNames},
		{"my plants", p.myPlantDimension},
		{"planting histories", p.plantingHistories},
		{"watering histories", p.wateringHistories},
		{"customize watering reminders", p.customizeWateringReminders},
		{"user activities", p.userActivities},
		{"plant dimension", p.plantDimension},
		{"plant satellites", p.plantSatellites},
		{"plants data", p.plantsData},
	}

	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return nil, xerrors.Errorf("failed to build %s: %w", s.name, err)
		}
	}

	for _, name := range Outputs {
		t, err := p.out.get(name)
		if err != nil {
			return nil, err
		}
		if err := checkColumns(t); err != nil {
			return nil, err
		}
		log.Ctx(ctx).Info().Str("table", name).Int("rows", t.Len()).Msg("built table")
	}

	return p.out, nil
}

// checkColumns enforces unique, entity-specific column names.
func checkColumns(t *frame.Table) error {
	cols := t.Columns()
	if lo.Contains(cols, "id") {
		return xerrors.Errorf("%s still has a bare id column", t.Name)
	}
	if dup := lo.FindDuplicates(cols); len(dup) > 0 {
		return xerrors.Errorf("%s has duplicate columns %v", t.Name, dup)
	}
	return nil
}

type planner struct {
	in  Tables
	out Tables
	now time.Time

	users        *frame.Table
	plants       *frame.Table
	myPlants     *frame.Table
	planting     *frame.Table
	watering     *frame.Table
	dimPlants    *frame.Table
	reminders    *frame.Table
	faqs         *frame.Table
	instructions *frame.Table
	traits       *frame.Table
}

func (p *planner) source(name string) (*frame.Table, error) {
	return p.in.get(DimensionalName(name))
}

func (p *planner) emit(name string, t *frame.Table) {
	p.out[name] = t.Named(name)
}

func (p *planner) renamed(source string, mapping map[string]string) (*frame.Table, error) {
	t, err := p.source(source)
	if err != nil {
		return nil, err
	}
	return t.Rename(mapping)
}

func left(l, r *frame.Table, key, suffix string) (*frame.Table, error) {
	return frame.Merge(l, r, frame.MergeOptions{On: []string{key}, How: frame.Left, Suffixes: [2]string{"", suffix}})
}

func (p *planner) userDimension(_ context.Context) error {
	t, err := p.renamed("users", map[string]string{"id": "user_id", "name": "user_name"})
	if err != nil {
		return err
	}
	p.users = t
	p.emit("dim_users", t)
	return nil
}

func (p *planner) admins(_ context.Context) error {
	t, err := p.renamed("admins", map[string]string{"id": "admin_id", "name": "admin_name"})
	if err != nil {
		return err
	}
	p.emit("dim_admins", t)
	return nil
}

func (p *planner) plantNames(_ context.Context) error {
	t, err := p.renamed("plants", map[string]string{"id": "plant_id", "name": "plant_name"})
	if err != nil {
		return err
	}
	if t, err = normalizePlantNames(t); err != nil {
		return err
	}
	p.plants = t
	return nil
}

func (p *planner) myPlantDimension(_ context.Context) error {
	t, err := p.source("user_plants")
	if err != nil {
		return err
	}
	if t, err = left(t, p.users, "user_id", "_user"); err != nil {
		return err
	}
	if t, err = left(t, p.plants, "plant_id", "_plant"); err != nil {
		return err
	}
	if t, err = t.Select("id", "user_name", "plant_name", "created_at", "updated_at", "last_watered_at"); err != nil {
		return err
	}
	if t, err = t.Rename(map[string]string{"id": "my_plant_id"}); err != nil {
		return err
	}
	p.myPlants = t
	p.emit("dim_my_plants", t)
	return nil
}

func (p *planner) plantingHistories(_ context.Context) error {
	t, err := p.source("user_plant_histories")
	if err != nil {
		return err
	}
	if t, err = left(t, p.users, "user_id", "_user"); err != nil {
		return err
	}
	if t, err = t.Select("id", "user_name", "plant_name", "plant_category", "created_at", "updated_at"); err != nil {
		return err
	}
	if t, err = t.Rename(map[string]string{"id": "planting_history_id"}); err != nil {
		return err
	}
	if t, err = normalizePlantNames(t); err != nil {
		return err
	}
	p.planting = t
	p.emit("dim_planting_histories", t)
	return nil
}

func (p *planner) wateringHistories(_ context.Context) error {
	t, err := p.source("watering_histories")
	if err != nil {
		return err
	}
	if t, err = left(t, p.users, "user_id", "_user"); err != nil {
		return err
	}
	if t, err = left(t, p.plants, "plant_id", "_plant"); err != nil {
		return err
	}
	if t, err = t.Select("id", "user_name", "plant_name", "created_at", "updated_at"); err != nil {
		return err
	}
	if t, err = t.Rename(map[string]string{"id": "watering_history_id"}); err != nil {
		return err
	}
	if t, err = normalizePlantNames(t); err != nil {
		return err
	}
	p.watering = t
	p.emit("dim_watering_histories", t)
	return nil
}

func (p *planner) customizeWateringReminders(_ context.Context) error {
	t, err := p.renamed("customize_watering_reminders", map[string]string{"id": "customize_watering_reminder_id"})
	if err != nil {
		return err
	}
	p.emit("dim_customize_watering_reminders", t)
	return nil
}

// userActivities ties ownership, planting and watering together by user and
// plant name. Outer merges keep partial activity, so ids may be missing until
// the fact cleanse turns them into -1.
func (p *planner) userActivities(ctx context.Context) error {
	on := []string{"user_name", "plant_name"}

	t, err := frame.Merge(p.myPlants, p.planting, frame.MergeOptions{On: on, How: frame.Outer, Suffixes: [2]string{"_my_plants", "_planting"}})
	if err != nil {
		return err
	}
	if t, err = frame.Merge(t, p.watering, frame.MergeOptions{On: on, How: frame.Outer, Suffixes: [2]string{"_fact", "_watering"}}); err != nil {
		return err
	}
	if t, err = t.Select("my_plant_id", "planting_history_id", "watering_history_id"); err != nil {
		return err
	}

	// Counts are over the whole table and repeated on every row.
	counters := []struct{ column, of string }{
		{"watering_count", "watering_history_id"},
		{"planting_count", "planting_history_id"},
		{"user_plant_count", "my_plant_id"},
	}
	for _, c := range counters {
		n, err := t.DistinctCount(c.of)
		if err != nil {
			return err
		}
		t = t.WithConstant(c.column, int64(n))
	}

	t, _ = ForFact(p.now).Cleanse(ctx, t.Named("fact_user_activities"))
	p.emit("fact_user_activities", NormalizeTypes(t, p.now))
	return nil
}

func (p *planner) plantDimension(_ context.Context) error {
	categories, err := p.renamed("plant_categories", map[string]string{"id": "plant_category_id", "name": "plant_category"})
	if err != nil {
		return err
	}

	t, err := left(p.plants, categories, "plant_category_id", "_category")
	if err != nil {
		return err
	}
	t, err = t.Select("plant_id", "plant_name", "description", "is_toxic", "harvest_duration",
		"sunlight", "planting_time", "plant_category", "climate_condition",
		"additional_tips", "created_at", "updated_at")
	if err != nil {
		return err
	}

	p.dimPlants = t
	p.emit("dim_plants", t)
	return nil
}

// plantSatellites prepares the per-plant tables fact_plants_data is built
// from and emits their dimensions without the plant_id foreign key.
func (p *planner) plantSatellites(_ context.Context) error {
	t, err := p.source("plant_reminders")
	if err != nil {
		return err
	}
	t, err = t.Select("id", "plant_id", "watering_frequency", "each", "watering_amount",
		"unit", "watering_time", "weather_condition", "condition_description",
		"created_at", "updated_at")
	if err != nil {
		return err
	}
	if p.reminders, err = t.Rename(map[string]string{"id": "watering_reminders_id"}); err != nil {
		return err
	}

	if p.faqs, err = p.renamed("plant_faqs", map[string]string{"id": "plant_faqs_id"}); err != nil {
		return err
	}

	instructions, err := p.renamed("plant_instructions", map[string]string{"id": "plant_instruction_id"})
	if err != nil {
		return err
	}
	categories, err := p.renamed("plant_instruction_categories", map[string]string{"id": "instruction_category_id"})
	if err != nil {
		return err
	}
	if instructions, err = left(instructions, categories, "instruction_category_id", "_category"); err != nil {
		return err
	}
	instructions, err = instructions.Select("plant_instruction_id", "name", "plant_id", "step_number", "step_title",
		"step_description", "step_image_url", "additional_tips", "created_at", "updated_at")
	if err != nil {
		return err
	}
	if p.instructions, err = instructions.Rename(map[string]string{"name": "name_instruction_categories"}); err != nil {
		return err
	}

	if p.traits, err = p.renamed("plant_characteristics", map[string]string{"id": "plant_characteristic_id"}); err != nil {
		return err
	}

	dims := []struct {
		name    string
		from    *frame.Table
		columns []string
	}{
		{"dim_watering_reminders", p.reminders, []string{"watering_reminders_id", "watering_frequency", "each", "watering_amount",
			"unit", "watering_time", "weather_condition", "condition_description", "created_at", "updated_at"}},
		{"dim_plant_faqs", p.faqs, []string{"plant_faqs_id", "question", "answer", "created_at", "updated_at"}},
		{"dim_plant_instructions", p.instructions, []string{"plant_instruction_id", "name_instruction_categories", "step_number",
			"step_title", "step_description", "step_image_url", "additional_tips", "created_at", "updated_at"}},
		{"dim_plant_characteristics", p.traits, []string{"plant_characteristic_id", "height", "height_unit", "wide",
			"wide_unit", "leaf_color"}},
	}
	for _, d := range dims {
		t, err := d.from.Select(d.columns...)
		if err != nil {
			return err
		}
		p.emit(d.name, t)
	}

	return nil
}

// plantsData chains inner merges on plant_id. A plant missing any of its
// satellite records drops out of the fact table.
func (p *planner) plantsData(ctx context.Context) error {
	inner := func(l, r *frame.Table, suffixes [2]string) (*frame.Table, error) {
		return frame.Merge(l, r, frame.MergeOptions{On: []string{"plant_id"}, How: frame.Inner, Suffixes: suffixes})
	}

	t, err := inner(p.reminders, p.dimPlants, [2]string{"_watering_reminders", "_plant"})
	if err != nil {
		return err
	}
	if t, err = t.Select("plant_id", "watering_reminders_id"); err != nil {
		return err
	}

	if t, err = inner(p.faqs, t, [2]string{"_faqs", "_fact"}); err != nil {
		return err
	}
	if t, err = t.Select("plant_id", "plant_faqs_id", "watering_reminders_id"); err != nil {
		return err
	}

	if t, err = inner(p.instructions, t, [2]string{"_instructions", "_fact"}); err != nil {
		return err
	}
	if t, err = t.Select("plant_id", "plant_faqs_id", "plant_instruction_id", "watering_reminders_id"); err != nil {
		return err
	}

	if t, err = inner(p.traits, t, [2]string{"_characteristics", "_fact"}); err != nil {
		return err
	}
	if t, err = t.Select("plant_id", "plant_faqs_id", "plant_characteristic_id", "plant_instruction_id", "watering_reminders_id"); err != nil {
		return err
	}

	n, err := t.DistinctCount("plant_id")
	if err != nil {
		return err
	}
	t = t.WithConstant("total_plants", int64(n))

	t, _ = ForFact(p.now).Cleanse(ctx, t.Named("fact_plants_data"))
	p.emit("fact_plants_data", NormalizeTypes(t, p.now))
	return nil
}
