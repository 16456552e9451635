package ukf

// DynamicMeasurement is a measurement over a subset of the model's fields
// chosen at runtime, for sensors whose availability changes from cycle to
// cycle. Inactive fields are never predicted and take no rows or columns in
// any result. With every field active, all results equal those of the model's
// FixedMeasurement.
type DynamicMeasurement struct {
	measurement
}

// Dynamic returns a measurement with the given fields active.
func (m *MeasurementModel) Dynamic(fields ...Field) (*DynamicMeasurement, error) {
	d := &DynamicMeasurement{measurement{model: m}}
	if err := d.Activate(fields...); err != nil {
		return nil, err
	}
	return d, nil
}

// Activate replaces the active field set. Vectors, sigma points and deltas
// built under the previous set keep their old layout and are rejected by the
// operations of the new one.
func (d *DynamicMeasurement) Activate(fields ...Field) error {
	l, err := d.model.layout.schema.Subset(fields...)
	if err != nil {
		return err
	}
	d.layout = l
	return nil
}

// Active reports whether f is in the active set.
func (d *DynamicMeasurement) Active(f Field) bool { return d.layout.Has(f) }

// Size returns the tangent dimension of the active fields.
func (d *DynamicMeasurement) Size() int { return d.layout.dim }
