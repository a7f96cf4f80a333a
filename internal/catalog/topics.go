package catalog

// TopicEquipmentEvents carries catalog and order events.
const TopicEquipmentEvents = "equipment.events"

// Partition key = equipment id so every change to one item stays in order.
func PartitionKey(equipmentID string) []byte { return []byte(equipmentID) }
